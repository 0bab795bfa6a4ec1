package provider

import (
	"context"

	"github.com/conneroisu/assetry/internal/build"
	"github.com/conneroisu/assetry/internal/errors"
)

// Precompile brings the output of every compile provider up to date for the
// given templates and their ancestors, without rendering anything. Each
// source and output pair is handled once. Failures are added to collector and
// do not stop the other compiles.
func Precompile(ctx context.Context, handles []Handle, collector *errors.ErrorCollector) ([]build.Result, error) {
	if current() == nil {
		return nil, errors.ErrNotInitialized()
	}

	var results []build.Result
	done := make(map[string]bool)
	for _, h := range handles {
		chain, err := BuildChain(h, "")
		if err != nil {
			collector.Add(h.App()+"/"+h.Name(), "", err)
			continue
		}

		for _, ti := range chain {
			for _, p := range ti.Providers {
				cp, ok := p.(*CompileProvider)
				if !ok {
					continue
				}
				source, output := cp.Paths(ti)
				key := source + "\x00" + output
				if done[key] {
					continue
				}
				done[key] = true

				res, exists, err := cp.Ensure(ctx, ti)
				if err != nil {
					collector.Add(ti.String(), cp.String(), err)
					continue
				}
				if exists {
					results = append(results, res)
				}
			}
		}

		if err := ctx.Err(); err != nil {
			return results, err
		}
	}

	return results, nil
}
