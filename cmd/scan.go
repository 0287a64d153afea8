package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscan/internal/capture"
	"github.com/sells-group/leadscan/internal/model"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Read a badge photo, review the guessed fields, and record the lead",
	Long: "Crops and reads the badge photo with OCR, pre-fills name and company, " +
		"then asks you to confirm or correct each field before the lead is recorded. " +
		"Use --image - to read the photo from stdin and --yes to skip the review prompt.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		imagePath, _ := cmd.Flags().GetString("image")
		if imagePath == "" {
			return eris.New("--image is required")
		}
		yes, _ := cmd.Flags().GetBool("yes")

		env, err := initApp(ctx, "capture")
		if err != nil {
			return err
		}
		defer env.Close()

		var src capture.ImageSource
		if imagePath == "-" {
			src = capture.NewReaderSource(io.NopCloser(cmd.InOrStdin()))
			// Stdin carries the photo, so there is nothing left to prompt from.
			yes = true
		} else {
			src = capture.NewFileSource(imagePath)
		}

		p := env.Pipeline
		if err := p.Begin(src); err != nil {
			return err
		}
		ext, err := p.Extract(ctx)
		if err != nil {
			p.Cancel()
			return err
		}

		out := cmd.OutOrStdout()
		if ext.Fallback {
			fmt.Fprintln(cmd.ErrOrStderr(), ext.Warning)
		}
		printCandidateLines(out, ext.Lines)

		fields := applyFieldFlags(cmd.Flags(), ext.Fields)
		if !yes {
			fields, err = reviewFields(cmd.InOrStdin(), out, fields, ext.Lines)
			if err != nil {
				p.Cancel()
				return err
			}
		}

		if err := p.Edit(fields); err != nil {
			p.Cancel()
			return err
		}
		res, err := p.Submit(ctx)
		if err != nil {
			p.Cancel()
			return err
		}
		printSubmitResult(out, res, env.Queue.Pending())
		return nil
	},
}

func printCandidateLines(w io.Writer, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(w, "Text found on badge:")
	for i, l := range lines {
		fmt.Fprintf(w, "  %d) %s\n", i+1, l)
	}
}

// reviewFields prompts for each field. An empty answer keeps the current
// value, a line number picks a badge line, and "-" clears the field.
func reviewFields(in io.Reader, out io.Writer, f model.Fields, lines []string) (model.Fields, error) {
	sc := bufio.NewScanner(in)
	ask := func(label, current string) (string, error) {
		fmt.Fprintf(out, "%s [%s]: ", label, current)
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return current, nil
		}
		answer := strings.TrimSpace(sc.Text())
		switch {
		case answer == "":
			return current, nil
		case answer == "-":
			return "", nil
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(lines) {
			return lines[n-1], nil
		}
		return answer, nil
	}

	var err error
	if f.Name, err = ask("Name", f.Name); err != nil {
		return f, err
	}
	if f.Company, err = ask("Company", f.Company); err != nil {
		return f, err
	}
	if f.Notes, err = ask("Notes", f.Notes); err != nil {
		return f, err
	}
	return f, nil
}

func init() {
	scanCmd.Flags().String("image", "", "badge photo (PNG or JPEG), or - for stdin")
	scanCmd.Flags().BoolP("yes", "y", false, "accept the OCR guesses without prompting")
	addFieldFlags(scanCmd.Flags())
	rootCmd.AddCommand(scanCmd)
}
