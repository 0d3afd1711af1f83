package email

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMessageHTMLEscapesAndSplits(t *testing.T) {
	html, err := renderMessageHTML("Hello", "Hi Dana,\n\nSee <this> link.\n\n\n")
	require.NoError(t, err)

	assert.Contains(t, html, "<title>Hello</title>")
	assert.Equal(t, 2, strings.Count(html, "<p "))
	assert.Contains(t, html, "See &lt;this&gt; link.")
}

func TestBuildMessageSetsMessageID(t *testing.T) {
	s := &SMTPSender{fromName: "Leadflow", fromEmail: "team@leadflow.test"}

	msg, err := s.buildMessage("", "dana@acme.test", "Quick question", "Hi Dana")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.GetMessageID())

	_, err = s.buildMessage("", "not an address", "x", "y")
	assert.Error(t, err)
}

func TestNilSenderFails(t *testing.T) {
	var s *SMTPSender
	_, err := s.Send(context.Background(), "", "a@b.test", "s", "b")
	assert.Error(t, err)
}
