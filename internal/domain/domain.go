package domain

// Verification states reported for a completed activity.
const (
	VerificationNotStarted = "not_started"
	VerificationStarted    = "started"
	VerificationVerified   = "verified"
)

type Project struct {
	ID          int64  `json:"id"`
	Owner       string `json:"owner"`
	MetadataURI string `json:"metadata_uri"`
	Distributed bool   `json:"distributed"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Activity struct {
	ProjectID int64  `json:"project_id"`
	Index     int    `json:"index"`
	Type      string `json:"type"`
	DetailURI string `json:"detail_uri"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type CompletedActivity struct {
	ID            string `json:"id"`
	ProjectID     int64  `json:"project_id"`
	ActivityIndex int    `json:"activity_index"`
	ActivityType  string `json:"activity_type"`
	Author        string `json:"author"`
	SubmittedAt   string `json:"submitted_at" format:"date-time"`
	Content       string `json:"content"`
}

// Verification is the persisted state of a two-phase verification.
type Verification struct {
	ProjectID           int64   `json:"project_id"`
	ActivityIndex       int     `json:"activity_index"`
	CompletedActivityID string  `json:"completed_activity_id"`
	Status              string  `json:"status" enum:"not_started,started,verified"`
	ClaimID             string  `json:"claim_id,omitempty"`
	Statement           string  `json:"statement,omitempty"`
	StartedBy           string  `json:"started_by,omitempty"`
	StartedAt           string  `json:"started_at,omitempty" format:"date-time"`
	VerifiedAt          *string `json:"verified_at,omitempty" format:"date-time"`
}

type Acceptance struct {
	Seq                 int64  `json:"seq"`
	ProjectID           int64  `json:"project_id"`
	ActivityIndex       int    `json:"activity_index"`
	CompletedActivityID string `json:"completed_activity_id"`
	Author              string `json:"author"`
	AcceptedAt          string `json:"accepted_at" format:"date-time"`
}

// Reward amounts are wei encoded as base-10 strings.
type Reward struct {
	ProjectID     int64    `json:"project_id"`
	DetailURI     string   `json:"detail_uri"`
	Value         string   `json:"value"`
	Share         string   `json:"share"`
	Remainder     string   `json:"remainder"`
	Recipients    int      `json:"recipients"`
	DistributedBy string   `json:"distributed_by"`
	DistributedAt string   `json:"distributed_at" format:"date-time"`
	Payouts       []Payout `json:"payouts"`
}

type Payout struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type Balance struct {
	Account   string `json:"account"`
	Amount    string `json:"amount"`
	UpdatedAt string `json:"updated_at,omitempty" format:"date-time"`
}

type LedgerEntry struct {
	ID     int64  `json:"id"`
	TS     string `json:"ts" format:"date-time"`
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Memo   string `json:"memo,omitempty"`
}

type Profile struct {
	Account   string `json:"account"`
	URI       string `json:"uri"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  int64  `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
