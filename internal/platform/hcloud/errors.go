package hcloud

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodekit/internal/provider"
)

// isResourceLocked checks if an error indicates a resource is locked.
// Locked resources typically occur while another action runs on them.
// These errors are retryable.
func isResourceLocked(err error) bool {
	return isHCloudErrorCode(err,
		hcloud.ErrorCodeLocked,
		hcloud.ErrorCodeConflict,
		hcloud.ErrorCodeResourceLocked,
		hcloud.ErrorCodeResourceUnavailable,
	)
}

// isInvalidParameter checks if an error indicates invalid parameters.
// These errors are fatal and should not be retried.
func isInvalidParameter(err error) bool {
	return isHCloudErrorCode(err,
		hcloud.ErrorCodeNotFound,
		hcloud.ErrorCodeInvalidInput,
		hcloud.ErrorCodeInvalidServerType,
		hcloud.ErrorCodeUniquenessError,
	)
}

// isHCloudErrorCode checks if the error is an hcloud API error with one of the given codes.
func isHCloudErrorCode(err error, codes ...hcloud.ErrorCode) bool {
	if err == nil {
		return false
	}

	var hcloudErr hcloud.Error
	if errors.As(err, &hcloudErr) {
		for _, code := range codes {
			if hcloudErr.Code == code {
				return true
			}
		}
	}
	return false
}

// IsNotFound checks if an error indicates a resource was not found.
func IsNotFound(err error) bool {
	return isHCloudErrorCode(err, hcloud.ErrorCodeNotFound)
}

// wrap converts API not-found errors into provider.ErrNotFound and adds
// context to everything else.
func wrap(err error, verb string, kind provider.ResourceKind, id string) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) {
		return provider.NotFound(kind, id)
	}
	return fmt.Errorf("failed to %s %s %s: %w", verb, kind, id, err)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// parseID parses a numeric Hetzner id. ok is false for anything else, which
// callers treat as "no such resource".
func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
