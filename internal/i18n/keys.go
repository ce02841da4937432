// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess  = "success"
	KeyError    = "error"
	KeyInternal = "server.internal_error"

	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthTokenExpired       = "auth.token_expired"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthUserNotFound       = "auth.user_not_found"
	KeyAuthUserExists         = "auth.user_exists"
	KeyAuthLoginSuccess       = "auth.login_success"
	KeyAuthRegisterSuccess    = "auth.register_success"
	KeyAuthPasswordReset      = "auth.password_reset"
	KeyAuthPasswordResetDone  = "auth.password_reset_success"
	KeyAuthAccountInactive    = "auth.account_inactive"

	// User Management
	KeyUserProfileUpdated     = "user.profile_updated"
	KeyUserNotFound           = "user.not_found"
	KeyUserArtistApplied      = "user.artist_applied"
	KeyUserArtistAlreadyExist = "user.artist_already"
	KeyUserAccountDeleted     = "user.account_deleted"
	KeyUserPasswordChanged    = "user.password_changed"

	// Catalog
	KeyTrackCreated    = "track.created"
	KeyTrackUpdated    = "track.updated"
	KeyTrackDeleted    = "track.deleted"
	KeyTrackNotFound   = "track.not_found"
	KeyAlbumCreated    = "album.created"
	KeyAlbumUpdated    = "album.updated"
	KeyAlbumDeleted    = "album.deleted"
	KeyAlbumNotFound   = "album.not_found"
	KeyCatalogInUse    = "catalog.in_distribution"
	KeyCommentCreated  = "comment.created"
	KeyCommentDeleted  = "comment.deleted"
	KeyCommentNotFound = "comment.not_found"

	// Blog
	KeyBlogPostCreated      = "blog_post.created"
	KeyBlogPostUpdated      = "blog_post.updated"
	KeyBlogPostDeleted      = "blog_post.deleted"
	KeyBlogPostNotFound     = "blog_post.not_found"
	KeyBlogCategoryCreated  = "blog_category.created"
	KeyBlogCategoryNotFound = "blog_category.not_found"

	// Distribution
	KeyDistributionCreated           = "distribution.created"
	KeyDistributionNotFound          = "distribution.not_found"
	KeyDistributionTracksUpdated     = "distribution.tracks_updated"
	KeyDistributionStatusUpdated     = "distribution.status_updated"
	KeyDistributionInvalidTransition = "distribution.invalid_transition"

	// Payments
	KeyPaymentInitiated       = "payment.initiated"
	KeyPaymentNotFound        = "payment.not_found"
	KeyPaymentUnavailable     = "payment.unavailable"
	KeyPaymentRejected        = "payment.rejected"
	KeyPaymentOperatorsFailed = "payment.operators_degraded"

	// Admin
	KeyAdminActionSuccess  = "admin.action_success"
	KeyAdminAccessDenied   = "admin.access_denied"
	KeyAdminUserSuspended  = "admin.user_suspended"
	KeyAdminArtistApproved = "admin.artist_approved"
	KeyAdminArtistRejected = "admin.artist_rejected"
	KeyAdminArtistNotFound = "admin.artist_not_pending"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"

	// File Upload
	KeyFileUploadFailed = "file.upload_failed"
	KeyFileInvalidType  = "file.invalid_type"
	KeyFileTooLarge     = "file.too_large"

	// Rate limiting
	KeyRateLimited = "rate_limit.exceeded"
)
