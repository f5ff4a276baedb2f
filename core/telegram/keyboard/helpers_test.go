package keyboard

import (
	"reflect"
	"testing"
)

func TestReplyButtonsLayout(t *testing.T) {
	m := ReplyButtons([]string{"Work", "Study"}, nil, []string{"Other"})
	if !m.ResizeKeyboard {
		t.Fatal("keyboard not resized")
	}
	want := [][]string{{"Work", "Study"}, {"Other"}}
	if got := Labels(m); !reflect.DeepEqual(got, want) {
		t.Fatalf("labels = %v, want %v", got, want)
	}
}

func TestRemoveKeyboard(t *testing.T) {
	if m := RemoveKeyboard(); !m.RemoveKeyboard || len(m.ReplyKeyboard) != 0 {
		t.Fatalf("markup = %+v", m)
	}
}

func TestChunkLabels(t *testing.T) {
	in := []string{"a", "b", "c"}
	if got := ChunkLabels(in, 2); !reflect.DeepEqual(got, [][]string{{"a", "b"}, {"c"}}) {
		t.Fatalf("n=2: %v", got)
	}
	if got := ChunkLabels(in, 1); !reflect.DeepEqual(got, [][]string{{"a"}, {"b"}, {"c"}}) {
		t.Fatalf("n=1: %v", got)
	}
}
