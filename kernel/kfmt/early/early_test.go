package early

import "testing"

func captured(fn func()) string {
	var buf []byte
	SetSink(func(b byte) { buf = append(buf, b) })
	defer SetSink(func(byte) {})
	fn()
	return string(buf)
}

func TestPrintfVerbs(t *testing.T) {
	cases := []struct {
		format string
		args   []interface{}
		want   string
	}{
		{"hello", nil, "hello"},
		{"%s", []interface{}{"world"}, "world"},
		{"%d", []interface{}{42}, "42"},
		{"%d", []interface{}{-7}, "-7"},
		{"%x", []interface{}{uint64(255)}, "ff"},
		{"%4x", []interface{}{uint64(1)}, "0001"},
		{"%o", []interface{}{uint64(8)}, "10"},
		{"%t", []interface{}{true}, "true"},
		{"%t", []interface{}{false}, "false"},
		{"%%", nil, "%"},
		{"[0x%10x]", []interface{}{uint64(0x1000)}, "[0x0000001000]"},
	}

	for _, tc := range cases {
		got := captured(func() { Printf(tc.format, tc.args...) })
		if got != tc.want {
			t.Errorf("Printf(%q, %v) = %q, want %q", tc.format, tc.args, got, tc.want)
		}
	}
}

func TestPrintfMissingArg(t *testing.T) {
	got := captured(func() { Printf("%d") })
	if got != errMissingArg {
		t.Errorf("got %q, want %q", got, errMissingArg)
	}
}
