package synth

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Stitcher concatenates ordered audio blobs with silence gaps between them.
type Stitcher interface {
	Concat(ctx context.Context, parts [][]byte, gapMS int, leadInMS int, leadOutMS int) ([]byte, error)
}

// FFmpegStitcher shells out to ffmpeg's concat demuxer, generating silence
// gaps with the anullsrc source. Used with real TTS backends.
type FFmpegStitcher struct{}

// Concat joins parts with gapMS of silence between each, plus optional
// lead-in/lead-out silence.
func (f *FFmpegStitcher) Concat(ctx context.Context, parts [][]byte, gapMS, leadInMS, leadOutMS int) ([]byte, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("no audio parts provided")
	}

	tmpDir, err := os.MkdirTemp("", "papercast-stitch-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	var inputs []string

	writeSilence := func(ms int, name string) (string, error) {
		if ms <= 0 {
			return "", nil
		}
		p := filepath.Join(tmpDir, name)
		cmd := exec.CommandContext(ctx, "ffmpeg",
			"-f", "lavfi",
			"-i", "anullsrc=r=44100:cl=mono",
			"-t", fmt.Sprintf("%.3f", float64(ms)/1000.0),
			"-q:a", "9",
			"-acodec", "libmp3lame",
			"-y", p,
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			return "", fmt.Errorf("ffmpeg silence failed: %w\nOutput: %s", err, out)
		}
		return p, nil
	}

	if p, err := writeSilence(leadInMS, "lead_in.mp3"); err != nil {
		return nil, err
	} else if p != "" {
		inputs = append(inputs, p)
	}

	gapPath, err := writeSilence(gapMS, "gap.mp3")
	if err != nil {
		return nil, err
	}

	for i, part := range parts {
		p := filepath.Join(tmpDir, fmt.Sprintf("part_%04d.mp3", i))
		if err := os.WriteFile(p, part, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write part %d: %w", i, err)
		}
		if i > 0 && gapPath != "" {
			inputs = append(inputs, gapPath)
		}
		inputs = append(inputs, p)
	}

	if p, err := writeSilence(leadOutMS, "lead_out.mp3"); err != nil {
		return nil, err
	} else if p != "" {
		inputs = append(inputs, p)
	}

	// Build the concat list. FFmpeg requires escaped single quotes.
	var lines []string
	for _, in := range inputs {
		escaped := strings.ReplaceAll(in, "'", "'\\''")
		lines = append(lines, fmt.Sprintf("file '%s'", escaped))
	}
	listPath := filepath.Join(tmpDir, "concat.txt")
	if err := os.WriteFile(listPath, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return nil, fmt.Errorf("failed to create concat list: %w", err)
	}

	outPath := filepath.Join(tmpDir, "out.mp3")
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y", outPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg concat failed: %w\nOutput: %s", err, out)
	}

	return os.ReadFile(outPath)
}

// ByteStitcher joins parts by direct byte concatenation with marker gaps.
// Used with the mock synthesizer where artifacts are not real MP3 frames;
// ordering assertions in tests read the markers.
type ByteStitcher struct{}

// Concat joins parts with textual gap markers.
func (b *ByteStitcher) Concat(ctx context.Context, parts [][]byte, gapMS, leadInMS, leadOutMS int) ([]byte, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("no audio parts provided")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if leadInMS > 0 {
		fmt.Fprintf(&buf, "[silence:%dms]", leadInMS)
	}
	for i, part := range parts {
		if i > 0 && gapMS > 0 {
			fmt.Fprintf(&buf, "[silence:%dms]", gapMS)
		}
		buf.Write(part)
	}
	if leadOutMS > 0 {
		fmt.Fprintf(&buf, "[silence:%dms]", leadOutMS)
	}
	return buf.Bytes(), nil
}
