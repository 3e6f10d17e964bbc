package cli

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/21prnv/InfluenceIq/internal/config"
	"github.com/21prnv/InfluenceIq/pkg/models"
)

func TestExitStatus(t *testing.T) {
	ok := &models.ScrapeResult{Account: "a", Profile: &models.ProfileRecord{}}
	wall := models.NewFailure("b", "", "LoginWallDetected", "wall", time.Now())
	timeout := models.NewFailure("c", "", "WorkerTimeout", "budget", time.Now())

	assert.Equal(t, 0, exitStatus([]*models.ScrapeResult{ok}))
	assert.Equal(t, 3, exitStatus([]*models.ScrapeResult{ok, wall, timeout}))
	assert.Equal(t, 2, exitStatus([]*models.ScrapeResult{timeout, wall}))
}

func TestWithExitCode(t *testing.T) {
	assert.NoError(t, withExitCode(0, nil))

	err := withExitCode(4, errors.New("disk full"))
	var exit *exitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 4, exit.code)
	assert.EqualError(t, err, "disk full")
}

func TestPassthroughArgs(t *testing.T) {
	cmd := &cobra.Command{Use: "scrape"}
	config.RegisterFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{
		"--session=work", "--verbose", "--proxy=http://p:1", "--output-dir=out",
	}))

	assert.Equal(t, []string{"--session=work", "--verbose=true"}, passthroughArgs(cmd))
}

func TestImportInteractive(t *testing.T) {
	in := strings.NewReader("sessionid\nabc\ncsrftoken\n\nds_user_id\n42\n\n")

	cookies, err := importInteractive(in, []string{"sessionid"})
	require.NoError(t, err)
	require.Len(t, cookies, 2, "empty values are skipped")
	assert.Equal(t, "sessionid", cookies[0].Name)
	assert.Equal(t, ".instagram.com", cookies[0].Domain)
	assert.Equal(t, "ds_user_id", cookies[1].Name)
}

func TestGetAppFromCmd(t *testing.T) {
	cmd := &cobra.Command{}
	assert.Nil(t, GetAppFromCmd(cmd))

	cmd.SetContext(context.Background())
	assert.Nil(t, GetAppFromCmd(cmd))
}
