package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/tests"
)

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf := testutil.NewConfig()
	svc := NewConsoleServiceMock(conf, testutil.NewLogger(conf))
	ResetSentMessages()
	defer ResetSentMessages()

	to := []mail.Address{{Name: "Jane", Address: "jane@test.io"}}
	svc.SendMessages(
		&core.EmailMessage{To: to, Subject: "Hi", BodyStr: "hello"},
		&core.EmailMessage{To: to, Subject: "Empty"},
		&core.EmailMessage{Subject: "Nobody", BodyStr: "hello"},
	)

	msgs := GetSentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hi", msgs[0].Subject)
	assert.Equal(t, "hello", msgs[0].TextContent)
	assert.Empty(t, msgs[0].HTMLContent)
}
