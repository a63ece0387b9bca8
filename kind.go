package cascade

// Kind identifies which engine variant owns a chain link.
type Kind string

const (
	// KindBatch marks links driven by the batch engine: jobs that process
	// large record sets in fixed-size batches.
	KindBatch Kind = "batch"

	// KindQueueable marks links driven by the queueable engine: lightweight
	// single-shot jobs with optional completion-hook continuation.
	KindQueueable Kind = "queueable"
)

// Valid reports whether k names a known engine kind.
func (k Kind) Valid() bool { return k == KindBatch || k == KindQueueable }

func (k Kind) String() string { return string(k) }

// ParseKind converts a string into a Kind, rejecting unknown values.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", ErrInvalidKind
	}
	return k, nil
}
