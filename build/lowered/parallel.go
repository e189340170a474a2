// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lowered

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// FinalizeAll finalizes drafts concurrently.
// Functions are returned in the order of the drafts.
// The first error cancels the remaining finalizations.
func FinalizeAll(ctx context.Context, drafts []*Draft, opts ...Option) ([]*Func, error) {
	fns := make([]*Func, len(drafts))
	if len(drafts) == 0 {
		return fns, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(runtime.GOMAXPROCS(0), len(drafts)))
	for i, draft := range drafts {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			fn, err := draft.Finalize(opts...)
			if err != nil {
				return err
			}
			fns[i] = fn
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	klog.V(1).Infof("finalized %d functions", len(fns))
	return fns, nil
}
