package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/maauso/bootanimation-api/internal/animation"
)

// ErrCompressedEntries is returned by inspect when an archive is not store-only.
var ErrCompressedEntries = errors.New("archive contains compressed entries")

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <bootanimation.zip>",
		Short: "Show the descriptor and parts of a boot animation archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.OutOrStdout(), args[0])
		},
	}
}

func runInspect(out io.Writer, path string) error {
	f, err := os.Open(path) // #nosec G304 - path is provided by the user
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	summary, err := animation.Inspect(f, info.Size())
	if err != nil {
		return err
	}

	d := summary.Descriptor
	rows := []summaryRow{
		{"Archive", path},
		{"Size", humanBytes(info.Size())},
		{"Resolution", fmt.Sprintf("%dx%d", d.Width, d.Height)},
		{"FPS", fmt.Sprint(d.FPS)},
	}
	for _, p := range summary.Parts {
		rows = append(rows, summaryRow{p.Name, describePart(p)})
	}

	fmt.Fprintln(out, titleStyle.Render(animation.DescriptorName))
	fmt.Fprintln(out, renderSummary(rows))

	if !summary.StoreOnly() {
		for _, name := range summary.Compressed {
			fmt.Fprintln(out, warnStyle.Render("compressed:"), name)
		}
		return fmt.Errorf("%w: %d of them", ErrCompressedEntries, len(summary.Compressed))
	}
	fmt.Fprintln(out, successStyle.Render("all entries stored"))
	return nil
}

func describePart(p animation.PartSummary) string {
	if !p.Described {
		return fmt.Sprintf("%d frames, not in %s", p.Frames, animation.DescriptorName)
	}
	play := "loops"
	if p.Count > 0 {
		play = fmt.Sprintf("plays %dx", p.Count)
	}
	s := fmt.Sprintf("%d frames, %s", p.Frames, play)
	if p.Pause > 0 {
		s += fmt.Sprintf(", pause %d", p.Pause)
	}
	return s
}
