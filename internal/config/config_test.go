package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, int64(80001), cfg.Chain.ID)
	require.Equal(t, int32(18), cfg.Chain.Decimals)
	require.Equal(t, VerifierContent, cfg.Verifiers["SEND_FEEDBACK"].Kind)
	require.Equal(t, VerifierOracle, cfg.Verifiers["FOLLOW_TWITTER"].Kind)
	require.False(t, cfg.Ledger.AllowDeposits)
}

func TestValidateRejectsBadVerifiers(t *testing.T) {
	cases := map[string]string{
		"unknown kind": `chain: {id: 1}
verifiers:
  X: {kind: magic}
`,
		"unknown mode": `chain: {id: 1}
verifiers:
  X: {kind: content, mode: fuzzy}
`,
		"oracle without url": `chain: {id: 1}
verifiers:
  X: {kind: oracle, statement: "s"}
`,
		"no verifiers": `chain: {id: 1}
`,
		"missing chain": `verifiers:
  X: {kind: content, mode: any}
`,
	}
	for name, doc := range cases {
		_, err := FromYAML([]byte(doc))
		require.Error(t, err, name)
	}
}

func TestFromYAMLDefaultsDecimals(t *testing.T) {
	cfg, err := FromYAML([]byte(`chain: {id: 5}
verifiers:
  SEND_FEEDBACK: {kind: content, mode: any}
`))
	require.NoError(t, err)
	require.Equal(t, int32(18), cfg.Chain.Decimals)
}

func TestLoadOptionalFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	_, err = Load(dir)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(Path(dir), []byte(GenerateDefault()), 0o644))
	loaded, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, Default(), loaded)
}
