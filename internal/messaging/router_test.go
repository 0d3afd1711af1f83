package messaging

import (
	"context"
	"errors"
	"testing"

	"leadflow/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSMS struct {
	sms, mms []string
	media    string
	err      error
}

func (f *fakeSMS) SendSMS(_ context.Context, to, _, body string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sms = append(f.sms, to+"|"+body)
	return "SM1", nil
}

func (f *fakeSMS) SendMMS(_ context.Context, to, _, body, mediaURL string) (string, error) {
	f.mms = append(f.mms, to+"|"+body)
	f.media = mediaURL
	return "MM1", nil
}

type fakeEmail struct{ sent int }

func (f *fakeEmail) Send(context.Context, string, string, string, string) (string, error) {
	f.sent++
	return "<id@leadflow>", nil
}

type fakeMedia struct{}

func (fakeMedia) ResolveMediaURL(_ context.Context, u string) (string, error) {
	return "https://signed.test/" + u, nil
}

func TestRouterDispatchesByChannel(t *testing.T) {
	sms := &fakeSMS{}
	email := &fakeEmail{}
	r := NewRouter(sms, email, 0, logger.Discard())
	r.SetMediaResolver(fakeMedia{})
	ctx := context.Background()

	res, err := r.SendMessage(ctx, Message{To: "+16502530000", Channel: ChannelSMS, Body: "hi"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "SM1", res.ProviderMessageID)

	res, err = r.SendMessage(ctx, Message{To: "+16502530000", Channel: ChannelMMS, Body: "look", MediaURL: "k.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "MM1", res.ProviderMessageID)
	assert.Equal(t, "https://signed.test/k.jpg", sms.media)

	_, err = r.SendMessage(ctx, Message{To: "dana@acme.test", Channel: ChannelEmail, Subject: "s", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, email.sent)
}

func TestRouterReportsFailure(t *testing.T) {
	r := NewRouter(&fakeSMS{err: errors.New("gateway down")}, nil, 5, logger.Discard())

	res, err := r.SendMessage(context.Background(), Message{To: "+16502530000", Body: "hi"})
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "gateway down", res.Error)

	_, err = r.SendMessage(context.Background(), Message{To: "x@y.test", Channel: ChannelEmail})
	assert.Error(t, err)

	_, err = r.SendMessage(context.Background(), Message{Channel: ChannelSMS, Body: "no recipient"})
	assert.Error(t, err)
}

func TestParseChannel(t *testing.T) {
	assert.Equal(t, ChannelEmail, ParseChannel(" EMAIL "))
	assert.Equal(t, ChannelMMS, ParseChannel("mms"))
	assert.Equal(t, ChannelSMS, ParseChannel(""))
	assert.Equal(t, ChannelSMS, ParseChannel("fax"))
}
