package cloudinary

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPublicID(t *testing.T) {
	require.Equal(t, "assignment-4-midterm_scan-20240101", PublicID("assignment-4-midterm_scan-20240101.pdf"))
	require.Equal(t, "My-File", PublicID("dir/My File.pdf"))
	require.Equal(t, "", PublicID("...pdf"))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
}
