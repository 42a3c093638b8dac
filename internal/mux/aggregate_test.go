package mux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loykin/barmux/internal/registry"
)

type nopHandle struct{ bytes.Buffer }

func (nopHandle) PID() int { return 1 }

func TestRender(t *testing.T) {
	reg := registry.New([]string{"battery-monitor", "idle", "volume-status"}, 0)
	assert.Equal(t, "[],\n", Render(reg))

	for i := 0; i < 3; i++ {
		_, _ = reg.Register(i, &nopHandle{})
	}
	reg.Write(2, []byte("{\"version\":1}\n[\n[{\"full_text\":\"Vol 50%\"}]\n"))
	reg.Write(0, []byte("Battery 80%\n"))
	assert.Equal(t, `[{"full_text":"Battery 80%"},{"full_text":"Vol 50%"}],`+"\n", Render(reg))

	reg.Write(0, []byte("say \"hi\" \\o/\n"))
	assert.Equal(t, `[{"full_text":"say \"hi\" \\o/"},{"full_text":"Vol 50%"}],`+"\n", Render(reg))
}
