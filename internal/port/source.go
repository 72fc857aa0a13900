package port

import "context"

// AdviceDocument is one raw payment advice document read from a source.
// SenderName carries the sender identity when the source knows it, such
// as the from-address of a mailbox source. Filesystem drops leave it
// empty.
type AdviceDocument struct {
	FileName   string
	Location   string
	SenderName string
	Text       string
}

// DocumentSource abstracts where payment advice documents come from.
type DocumentSource interface {
	// List returns the documents available for processing.
	List(ctx context.Context) ([]AdviceDocument, error)
}
