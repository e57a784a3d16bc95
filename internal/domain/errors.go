package domain

import (
	"fmt"

	apperrors "antbox-backend/pkg/errors"
)

// NewNodeNotFound reports a missing node.
func NewNodeNotFound(uuid string) error {
	return apperrors.NewNotFoundWithCode(apperrors.CodeNodeNotFound,
		fmt.Sprintf("node %q not found", uuid))
}

// NewFolderNotFound reports a missing or non-folder parent.
func NewFolderNotFound(uuid string) error {
	return apperrors.NewNotFoundWithCode(apperrors.CodeFolderNotFound,
		fmt.Sprintf("folder %q not found", uuid))
}

// NewSmartFolderNotFound reports that a uuid did not resolve to a smart folder.
func NewSmartFolderNotFound(uuid string) error {
	return apperrors.NewNotFoundWithCode(apperrors.CodeSmartFolderNodeNotFound,
		fmt.Sprintf("smart folder %q not found", uuid))
}

// NewAPIKeyNotFound reports a missing api key node.
func NewAPIKeyNotFound(uuid string) error {
	return apperrors.NewNotFoundWithCode(apperrors.CodeApiKeyNodeNotFound,
		fmt.Sprintf("api key %q not found", uuid))
}

// NewFeatureNotFound reports a missing feature node.
func NewFeatureNotFound(uuid string) error {
	return apperrors.NewNotFoundWithCode(apperrors.CodeFeatureNotFound,
		fmt.Sprintf("feature %q not found", uuid))
}

// NewNodeFileNotFound reports a missing binary for a file-like node.
func NewNodeFileNotFound(uuid string) error {
	return apperrors.NewNotFoundWithCode(apperrors.CodeNodeFileNotFound,
		fmt.Sprintf("no binary stored for node %q", uuid))
}
