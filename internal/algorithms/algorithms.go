// package algorithms implements the pluggable reorder algorithms applied to
// playlist contents.
//
// An Algorithm takes the current tracks plus user-supplied parameters and
// returns a new ordering of track URIs. Algorithms are pure: they never call
// the remote API and never mutate their input.
package algorithms

import (
	"fmt"
	"math/rand"

	"github.com/chrisrogers37/shuffify-sub000/internal/services"
	"github.com/chrisrogers37/shuffify-sub000/internal/shared"
)

// Algorithm produces a new URI ordering for the given tracks.
type Algorithm func(tracks []services.Track, params map[string]any) ([]string, error)

// Registry maps algorithm names to implementations.
type Registry struct {
	algorithms map[string]Algorithm
}

// NewRegistry returns a registry loaded with the built-in algorithms.
func NewRegistry() *Registry {
	r := &Registry{algorithms: map[string]Algorithm{}}
	r.Register("basic", BasicShuffle)
	r.Register("keep_first_n", KeepFirstN)
	r.Register("percentage", PercentageShuffle)
	r.Register("reverse", Reverse)
	return r
}

// Register adds or replaces a named algorithm.
func (r *Registry) Register(name string, algo Algorithm) {
	r.algorithms[name] = algo
}

// Get returns the algorithm registered under name.
func (r *Registry) Get(name string) (Algorithm, error) {
	algo, ok := r.algorithms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", shared.ErrInvalidAlgorithm, name)
	}
	return algo, nil
}

// Names returns the registered algorithm names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.algorithms))
	for name := range r.algorithms {
		names = append(names, name)
	}
	return names
}

// uris extracts the URI list from tracks in their current order.
func uris(tracks []services.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.URI
	}
	return out
}

// shuffle Fisher-Yates shuffles a URI slice in place.
func shuffle(list []string) {
	rand.Shuffle(len(list), func(i, j int) {
		list[i], list[j] = list[j], list[i]
	})
}

// BasicShuffle returns a uniform random permutation of the playlist.
func BasicShuffle(tracks []services.Track, _ map[string]any) ([]string, error) {
	out := uris(tracks)
	shuffle(out)
	return out, nil
}

// KeepFirstN pins the first n tracks in place and shuffles the rest.
// Param "n" (number, default 0).
func KeepFirstN(tracks []services.Track, params map[string]any) ([]string, error) {
	n, err := intParam(params, "n", 0)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: n must be non-negative", shared.ErrInvalidInput)
	}
	if n > len(tracks) {
		n = len(tracks)
	}

	out := uris(tracks)
	shuffle(out[n:])
	return out, nil
}

// PercentageShuffle shuffles only the leading percentage of the playlist,
// leaving the tail untouched. Param "percentage" (number 0-100, default 100).
func PercentageShuffle(tracks []services.Track, params map[string]any) ([]string, error) {
	pct, err := intParam(params, "percentage", 100)
	if err != nil {
		return nil, err
	}
	if pct < 0 || pct > 100 {
		return nil, fmt.Errorf("%w: percentage must be between 0 and 100", shared.ErrInvalidInput)
	}

	out := uris(tracks)
	cut := len(out) * pct / 100
	shuffle(out[:cut])
	return out, nil
}

// Reverse returns the playlist in reverse order.
func Reverse(tracks []services.Track, _ map[string]any) ([]string, error) {
	out := uris(tracks)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// intParam reads a numeric parameter, tolerating the float64 that JSON
// decoding produces.
func intParam(params map[string]any, key string, fallback int) (int, error) {
	if params == nil {
		return fallback, nil
	}
	raw, ok := params[key]
	if !ok {
		return fallback, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%w: parameter %q must be a number", shared.ErrInvalidInput, key)
	}
}
