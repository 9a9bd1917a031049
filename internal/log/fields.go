// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldRunID     = "run_id"
	FieldUID       = "uid"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"

	// Domain fields
	FieldPackage   = "package"
	FieldDataset   = "dataset"
	FieldReactions = "reactions"
	FieldSmiles    = "smiles"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
)
