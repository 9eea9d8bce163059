package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const chessBoard = "../../testdata/chess_board"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestArchs(t *testing.T) {
	out, err := run(t, "archs")
	if err != nil {
		t.Fatalf("archs error = %v", err)
	}
	if !strings.Contains(out, "LIBRARY") || !strings.Contains(out, "host") {
		t.Errorf("archs output missing host library:\n%s", out)
	}
}

func TestInspect(t *testing.T) {
	out, err := run(t, "inspect", chessBoard)
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	for _, want := range []string{"chess_board", "g_run", "arr:ndarray<i32>[2d]"} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output missing %q:\n%s", want, out)
		}
	}
}

func TestInspectMissing(t *testing.T) {
	if _, err := run(t, "inspect", "testdata/nope"); err == nil {
		t.Error("inspect of a missing module error = nil")
	}
}

func TestLaunchGraph(t *testing.T) {
	pngPath := filepath.Join(t.TempDir(), "board.png")
	out, err := run(t, "launch", chessBoard,
		"--graph", "g_run", "--args", "testdata/chess_board.yaml", "--png", pngPath, "--png-zoom", "2")
	if err != nil {
		t.Fatalf("launch error = %v\n%s", err, out)
	}
	// Half of the 256 cells are 1.
	if !strings.Contains(out, "128") {
		t.Errorf("launch summary missing sum 128:\n%s", out)
	}

	f, err := os.Open(pngPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Errorf("preview size = %dx%d, want 32x32", b.Dx(), b.Dy())
	}
}

func TestLaunchKernel(t *testing.T) {
	out, err := run(t, "launch", chessBoard,
		"--kernel", "chess_board", "--args", "testdata/chess_board.yaml", "--dump")
	if err != nil {
		t.Fatalf("launch error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "[0 1 0 1") {
		t.Errorf("dump missing the first row:\n%s", out)
	}
}

func TestLaunchErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no target", []string{"launch", chessBoard}},
		{"unknown arch", []string{"launch", chessBoard, "--graph", "g_run", "--arch", "z80"}},
		{"missing args", []string{"launch", chessBoard, "--graph", "g_run"}},
		{"unknown graph", []string{"launch", chessBoard, "--graph", "nope", "--args", "testdata/chess_board.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Errorf("%v error = nil", tt.args)
			}
		})
	}
}

func TestGrayImage(t *testing.T) {
	img := grayImage([]float64{0, 1, 2, 3, 4, 5}, 2, 3)
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Fatalf("bounds = %v, want 3x2", b)
	}
	if got := img.GrayAt(0, 0).Y; got != 0 {
		t.Errorf("GrayAt(0,0) = %d, want 0", got)
	}
	if got := img.GrayAt(2, 1).Y; got != 255 {
		t.Errorf("GrayAt(2,1) = %d, want 255", got)
	}
	if got := img.GrayAt(0, 1).Y; got != 153 {
		t.Errorf("GrayAt(0,1) = %d, want 153", got)
	}
}
