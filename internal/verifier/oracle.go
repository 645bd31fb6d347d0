package verifier

import (
	"context"
	"fmt"
	"strings"

	"earlyadopters/internal/content"
	"earlyadopters/internal/oracle"
)

// OracleVerifier asserts a templated statement to the oracle and reads the
// settled result on finish. The template may use {content} for the
// submitted text and {detail} for the activity detail content.
type OracleVerifier struct {
	Template string
	Store    content.Store
	Client   oracle.Client
}

func NewOracleVerifier(template string, store content.Store, client oracle.Client) *OracleVerifier {
	return &OracleVerifier{Template: template, Store: store, Client: client}
}

func (v *OracleVerifier) Name() string { return "oracle" }

// Statement renders the claim for s.
func (v *OracleVerifier) Statement(ctx context.Context, s Subject) (string, error) {
	detail := ""
	if strings.Contains(v.Template, "{detail}") {
		if v.Store == nil {
			return "", fmt.Errorf("statement needs activity detail but no content store is configured")
		}
		d, err := content.ReadDetail(ctx, v.Store, s.DetailURI)
		if err != nil {
			return "", fmt.Errorf("read activity detail: %w", err)
		}
		detail = d
	}
	r := strings.NewReplacer("{content}", strings.TrimSpace(s.Content), "{detail}", detail)
	return r.Replace(v.Template), nil
}

func (v *OracleVerifier) Start(ctx context.Context, s Subject) (Claim, error) {
	statement, err := v.Statement(ctx, s)
	if err != nil {
		return Claim{}, err
	}
	id, err := v.Client.Assert(ctx, statement)
	if err != nil {
		return Claim{}, err
	}
	return Claim{ID: id, Statement: statement}, nil
}

func (v *OracleVerifier) Finish(ctx context.Context, c Claim) (Resolution, error) {
	a, err := v.Client.Assertion(ctx, c.ID)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Settled: a.Settled, Accepted: a.Settled && a.Result}, nil
}
