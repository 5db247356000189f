package bflow_test

import (
	"bytes"
	"log"
	"net/http"
	"testing"

	"github.com/advdv/bflow"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestDiagnostic(t *testing.T) {
	diag := bflow.Diagnostic(errors.New("line one"))
	for _, line := range bytes.Split([]byte(diag), []byte("\n")) {
		require.True(t, bytes.HasPrefix(line, []byte("  ")), "line %q is not indented", line)
	}

	require.Contains(t, diag, "line one")
}

func TestStdLogger(t *testing.T) {
	var buf bytes.Buffer
	app := bflow.New(bflow.WithLogger(bflow.NewStdLogger(log.New(&buf, "", 0)))).Use(
		func(*bflow.Context) error { return errors.New("disk on fire") },
	)

	rec := get(app)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, buf.String(), "bflow: system error:\n  disk on fire")
}
