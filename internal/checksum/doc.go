// Package checksum fingerprints landed files for batch manifests.
package checksum
