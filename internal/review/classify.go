package review

// Classify compares a normalized candidate with the stored review (nil when
// absent) and returns the classification together with the candidate's
// content hash.
//
// A soft-deleted review always comes back as ClassRestored: reappearance is
// the signal, whatever the hash says.
func Classify(existing *Review, c Candidate) (Classification, string, error) {
	hash, err := c.Content().Hash()
	if err != nil {
		return "", "", Wrap(ErrMalformedCandidate, "classifier", c.ReviewID, "hash", err)
	}
	switch {
	case existing == nil:
		return ClassNew, hash, nil
	case existing.Deleted():
		return ClassRestored, hash, nil
	case existing.ContentHash == hash:
		return ClassUnchanged, hash, nil
	default:
		return ClassUpdated, hash, nil
	}
}
