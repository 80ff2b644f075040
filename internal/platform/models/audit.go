package models

const (
	AuditWebhookRejected      = "webhook.rejected"
	AuditWebhookMisconfigured = "webhook.misconfigured"
)

type AuditEntry struct {
	ID                string `json:"id"`
	Action            string `json:"action"`
	Reason            string `json:"reason"`
	Path              string `json:"path"`
	ReceivedSignature string `json:"received_signature,omitempty"`
	IPAddress         string `json:"ip_address"`
	UserAgent         string `json:"user_agent"`
	CreatedAt         int64  `json:"created_at"`
}
