package identity

import (
	"context"
	"log/slog"

	"revtrack/internal/logging"
	"revtrack/internal/review"
)

// AliasStore is the slice of the review store the resolver needs.
type AliasStore interface {
	ResolveAlias(ctx context.Context, key string) (*review.PlaceAlias, error)
	RegisterPlace(ctx context.Context, place review.Place, alias review.PlaceAlias) (placeCreated, aliasCreated bool, err error)
}

// Resolution is the outcome of resolving one source URL.
type Resolution struct {
	PlaceID      string
	SourceURL    string
	CanonicalURL string
	// ResolvedURL is the URL the identifier was read from, after any
	// redirect following.
	ResolvedURL  string
	Details      Details
	PlaceCreated bool
	AliasCreated bool
}

// Resolver maps source URLs to place ids, creating places and aliases on
// first sight.
type Resolver struct {
	store      AliasStore
	redirector Redirector
	logger     *slog.Logger
}

// NewResolver builds a resolver. A nil redirector disables redirect
// following.
func NewResolver(store AliasStore, redirector Redirector, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:      store,
		redirector: redirector,
		logger:     logging.NewComponentLogger(logger, "identity"),
	}
}

// Resolve returns the place id for rawURL. Unparseable input fails with
// review.ErrInvalidSourceReference.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (Resolution, error) {
	canonical, err := CanonicalizeURL(rawURL)
	if err != nil {
		return Resolution{}, err
	}
	res := Resolution{SourceURL: rawURL, CanonicalURL: canonical, ResolvedURL: canonical}
	key := AliasKey(canonical)

	alias, err := r.store.ResolveAlias(ctx, key)
	if err != nil {
		return Resolution{}, err
	}
	if alias != nil {
		res.PlaceID = alias.PlaceID
		res.Details = ExtractDetails(canonical)
		return res, nil
	}

	id := ExtractID(canonical)
	if id == "" && r.redirector != nil {
		id, res.ResolvedURL = r.followRedirects(ctx, rawURL, canonical)
	}
	if id == "" {
		id = shortLinkID(canonical)
	}
	if id == "" {
		id = fallbackID(res.ResolvedURL)
	}
	res.PlaceID = id
	res.Details = ExtractDetails(res.ResolvedURL)
	if res.Details.Name == "" && res.ResolvedURL != canonical {
		res.Details = ExtractDetails(canonical)
	}

	place := review.Place{
		PlaceID:      id,
		CanonicalURL: res.ResolvedURL,
		Name:         res.Details.Name,
		Latitude:     res.Details.Latitude,
		Longitude:    res.Details.Longitude,
	}
	newAlias := review.PlaceAlias{
		AliasKey:     key,
		PlaceID:      id,
		SourceURL:    rawURL,
		CanonicalURL: canonical,
	}
	res.PlaceCreated, res.AliasCreated, err = r.store.RegisterPlace(ctx, place, newAlias)
	if err != nil {
		return Resolution{}, err
	}
	r.logger.Info("source resolved",
		logging.String(logging.FieldPlaceID, id),
		logging.String("canonical_url", canonical),
		logging.Bool("place_created", res.PlaceCreated),
		logging.Bool("alias_created", res.AliasCreated),
		logging.String(logging.FieldEventType, "source_resolved"),
	)
	return res, nil
}

// followRedirects expands rawURL and returns the identifier found on the
// way together with the canonical form of the URL reached. Failures are
// logged and fall through to the weaker identifiers.
func (r *Resolver) followRedirects(ctx context.Context, rawURL, canonical string) (string, string) {
	target, err := r.redirector.Resolve(ctx, rawURL)
	if err != nil {
		logging.WarnWithContext(r.logger, "redirect resolution failed", "redirect_failed",
			logging.String("source_url", rawURL),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check network access or paste the full place URL"),
			logging.String(logging.FieldImpact, "place id derived from the URL itself"),
		)
		return "", canonical
	}
	resolved, err := CanonicalizeURL(target)
	if err != nil {
		return "", canonical
	}
	return ExtractID(resolved), resolved
}
