package dns

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSamplePacket(t *testing.T) *Packet {
	t.Helper()
	p := NewPacket(512)
	require.NoError(t, p.Push(SectionQD, []byte("example.com."), TypeA, ClassINET, 0, nil))
	require.NoError(t, p.Push(SectionAN, []byte("example.com."), TypeA, ClassINET, 300, &A{Addr: net.ParseIP("93.184.216.34")}))
	require.NoError(t, p.Push(SectionAN, []byte("example.com."), TypeAAAA, ClassINET, 300, &AAAA{Addr: net.ParseIP("2606:2800:220:1:248:1893:25c8:1946")}))
	require.NoError(t, p.Push(SectionNS, []byte("example.com."), TypeNS, ClassINET, 3600, &NS{Name: "a.iana-servers.net."}))
	return p
}

func TestGrepFiltersByType(t *testing.T) {
	p := buildSamplePacket(t)
	out := make([]Record, 4)
	n, state, err := p.Grep(GrepState{}, Filter{Sections: SectionAN.bit() | SectionNS.bit(), Type: TypeA, Class: ClassINET}, out)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, state.done)
}

func TestGrepANYMatchesAllTypes(t *testing.T) {
	p := buildSamplePacket(t)
	out := make([]Record, 8)
	n, _, err := p.Grep(GrepState{}, Filter{Sections: SectionAN.bit(), Type: TypeANY, Class: ClassANY}, out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestGrepRestartsFromSavedState(t *testing.T) {
	p := buildSamplePacket(t)
	filter := Filter{Sections: SectionQD.bit() | SectionAN.bit() | SectionNS.bit(), Type: TypeANY, Class: ClassANY}

	var got []Record
	state := GrepState{}
	for {
		out := make([]Record, 1)
		n, next, err := p.Grep(state, filter, out)
		require.NoError(t, err)
		got = append(got, out[:n]...)
		state = next
		if state.done {
			break
		}
	}
	assert.Len(t, got, 4)
}

func TestGrepNameFilterMatchesCaseInsensitively(t *testing.T) {
	p := buildSamplePacket(t)
	out := make([]Record, 4)
	n, _, err := p.Grep(GrepState{}, Filter{Sections: SectionQD.bit() | SectionAN.bit() | SectionNS.bit(), Type: TypeANY, Class: ClassANY, Name: "EXAMPLE.COM."}, out)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestGrepStopsOnMalformedRecord(t *testing.T) {
	p := NewPacket(64)
	require.NoError(t, p.Push(SectionQD, []byte("example.com."), TypeA, ClassINET, 0, nil))
	p.addSectionCount(SectionAN, 1) // claim a record that was never written

	out := make([]Record, 4)
	n, state, err := p.Grep(GrepState{}, Filter{Sections: SectionQD.bit() | SectionAN.bit(), Type: TypeANY, Class: ClassANY}, out)
	assert.Error(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, state.done)
}

func TestGrepOutputCapTruncatesAndPreservesResumeState(t *testing.T) {
	p := buildSamplePacket(t)
	out := make([]Record, 1)
	n, state, err := p.Grep(GrepState{}, Filter{Sections: SectionAN.bit(), Type: TypeANY, Class: ClassANY}, out)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, state.done)

	n2, state2, err := p.Grep(state, Filter{Sections: SectionAN.bit(), Type: TypeANY, Class: ClassANY}, out)
	require.NoError(t, err)
	assert.Equal(t, 1, n2)
	assert.False(t, state2.done)

	n3, state3, err := p.Grep(state2, Filter{Sections: SectionAN.bit(), Type: TypeANY, Class: ClassANY}, out)
	require.NoError(t, err)
	assert.Equal(t, 0, n3)
	assert.True(t, state3.done)
}
