// ABOUTME: Adapts a Backend into the option source consumed by dynamic select fields.
// ABOUTME: Caches and rate limits contribute labels, secrets contribute keys.

package api

import (
	"context"
	"fmt"

	"github.com/2389/airtruct-console/internal/schema"
)

// Options lists selectable values for dynamic select fields.
type Options struct {
	Backend Backend
}

// Options returns the values offered for source.
func (o Options) Options(ctx context.Context, source schema.DataSource) ([]string, error) {
	switch source {
	case schema.SourceCaches:
		return o.labels(ctx, KindCaches)
	case schema.SourceRateLimits:
		return o.labels(ctx, KindRateLimits)
	case schema.SourceSecrets:
		secrets, err := o.Backend.ListSecrets(ctx)
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(secrets))
		for _, s := range secrets {
			keys = append(keys, s.Key)
		}
		return keys, nil
	}
	return nil, fmt.Errorf("unknown data source %q", source)
}

func (o Options) labels(ctx context.Context, kind Kind) ([]string, error) {
	items, err := o.Backend.ListResources(ctx, kind)
	if err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(items))
	for _, r := range items {
		if r.Label != "" {
			labels = append(labels, r.Label)
		}
	}
	return labels, nil
}
