package common

// AuthorizationHeaderName is the HTTP header carrying the bearer token on
// outbound requests.
const AuthorizationHeaderName = "Authorization"

// ClientIDPrefix namespaces device identifiers so the server can tell
// Formulus clients apart from other API consumers.
const ClientIDPrefix = "formulus-"

// Metadata keys for persisted local state. Values are opaque to callers of
// the metadata repository; the constants here are the single source of truth
// for key names.
const (
	MetaKeyServerVersion     = "last_server_version"
	MetaKeyAttachmentVersion = "last_attachment_version"
	MetaKeyLastSyncAt        = "last_sync_at"
	MetaKeyBundleVersion     = "bundle_version"
	MetaKeyServerURL         = "server_url"
	MetaKeyClientID          = "client_id"

	MetaKeyUsername     = "username"
	MetaKeyPassword     = "password"
	MetaKeyAccessToken  = "access_token"
	MetaKeyRefreshToken = "refresh_token"
	MetaKeyTokenExpiry  = "token_expiry"

	// MetaKeyResetInProgress is written before a server-switch reset starts
	// and deleted after it completes, so a later launch can detect a torn
	// reset.
	MetaKeyResetInProgress = "reset_in_progress"
)
