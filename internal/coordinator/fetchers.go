package coordinator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/cyclescene/cyclescene/internal/ride"
)

// RideSource is the part of the gateway the ride fetcher needs.
type RideSource interface {
	FetchUpcoming(ctx context.Context, city string) ([]ride.Ride, error)
	FetchPast(ctx context.Context, city string) ([]ride.Ride, error)
}

type RouteSource interface {
	FetchRoutes(ctx context.Context, city string) ([]ride.Route, error)
}

// RideFetcher fetches upcoming and past rides concurrently and returns them
// concatenated, upcoming first. city is read at every call so a change of
// city applies to the next sync.
func RideFetcher(src RideSource, city func() string) FetchFunc[ride.Ride] {
	return func(ctx context.Context) ([]ride.Ride, error) {
		code := city()
		var upcoming, past []ride.Ride

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			upcoming, err = src.FetchUpcoming(gctx, code)
			return err
		})
		g.Go(func() error {
			var err error
			past, err = src.FetchPast(gctx, code)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		out := make([]ride.Ride, 0, len(upcoming)+len(past))
		out = append(out, upcoming...)
		return append(out, past...), nil
	}
}

func RouteFetcher(src RouteSource, city func() string) FetchFunc[ride.Route] {
	return func(ctx context.Context) ([]ride.Route, error) {
		return src.FetchRoutes(ctx, city())
	}
}
