package chat

import "alumnichat/internal/domain"

// MaxAttachmentBytes is the client-side attachment size cap.
const MaxAttachmentBytes = 10 << 20

var allowedAttachmentTypes = map[string]struct{}{
	"image/png":       {},
	"image/jpeg":      {},
	"image/jpg":       {},
	"image/gif":       {},
	"application/pdf": {},
	"text/plain":      {},
}

// ValidateAttachment checks a staged file against the size cap and the
// MIME allow-list. Violations are reported before any network call.
func ValidateAttachment(att domain.Attachment) error {
	if att.Size > MaxAttachmentBytes {
		return domain.ErrAttachmentTooBig
	}
	if _, ok := allowedAttachmentTypes[att.MIME]; !ok {
		return domain.ErrAttachmentType
	}
	return nil
}
