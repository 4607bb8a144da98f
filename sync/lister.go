package sync

import (
	"context"
	"fmt"
)

// DefaultPageSize is the number of keys requested per listing call.
const DefaultPageSize int32 = 1000

// ListAll enumerates every object under the source's prefix, following
// continuation tokens until the source reports no more pages. Directory
// markers are dropped. Any failure is returned as a *ListError.
func ListAll(ctx context.Context, src Source, pageSize int32) ([]Object, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var (
		objects []Object
		token   string
		seen    = make(map[string]struct{})
	)
	for page := 1; ; page++ {
		out, err := src.ListPage(ctx, token, pageSize)
		if err != nil {
			return nil, &ListError{Page: page, Err: err}
		}
		for _, obj := range out.Objects {
			if IsDirMarker(obj.Key) {
				continue
			}
			objects = append(objects, obj)
		}

		if out.NextToken == "" {
			break
		}
		if _, dup := seen[out.NextToken]; dup {
			return nil, &ListError{Page: page, Err: fmt.Errorf("continuation token %q repeated", out.NextToken)}
		}
		seen[out.NextToken] = struct{}{}
		token = out.NextToken
	}
	return objects, nil
}

// Ping issues a single one-key listing call to check that the source is
// reachable and the credentials are accepted.
func Ping(ctx context.Context, src Source) error {
	if _, err := src.ListPage(ctx, "", 1); err != nil {
		return &ListError{Page: 1, Err: err}
	}
	return nil
}
