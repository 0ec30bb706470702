package csvingest_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/csvingest/pkg/csvingest"
)

func TestParseAuthMethod(t *testing.T) {
	cases := map[string]csvingest.AuthMethod{
		"":               csvingest.AuthMethodStandard,
		"standard":       csvingest.AuthMethodStandard,
		"AWS-IAM":        csvingest.AuthMethodAWSIAM,
		"google-iam":     csvingest.AuthMethodGoogleIAM,
		"azure-entra-id": csvingest.AuthMethodAzureEntraID,
	}
	for in, want := range cases {
		got, err := csvingest.ParseAuthMethod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := csvingest.ParseAuthMethod("kerberos")
	assert.True(t, errors.Is(err, csvingest.ErrUnsupportedAuthMethod))
}

func TestAuthMethodString(t *testing.T) {
	assert.Equal(t, "AWS IAM", csvingest.AuthMethodAWSIAM.String())
	assert.Equal(t, "Unknown(42)", csvingest.AuthMethod(42).String())
}

func TestIngestOptionsValidate(t *testing.T) {
	assert.NoError(t, csvingest.IngestOptions{ChunkSize: 10}.Validate())

	err := csvingest.IngestOptions{ChunkSize: -1}.Validate()
	assert.ErrorIs(t, err, csvingest.ErrInvalidConfig)
}

func TestTableResultRowsLoaded(t *testing.T) {
	r := csvingest.TableResult{Files: []csvingest.FileResult{
		{Path: "a.csv", RowsLoaded: 2},
		{Path: "b.csv", RowsLoaded: 3},
	}}
	assert.Equal(t, int64(5), r.RowsLoaded())
}
