package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type CheckCommand struct {
	NoVoice bool `long:"no-voice" description:"Skip the voice check"`
}

func (c *CheckCommand) Execute(args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, c.NoVoice)
	if err != nil {
		return err
	}
	defer a.Close()

	r := a.orchestrator.Check(ctx)

	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	badStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	rows := make([][]string, 0, len(r.Items))
	for _, it := range r.Items {
		mark := "ok"
		if !it.OK {
			mark = "FAIL"
		}
		rows = append(rows, []string{it.Name, mark, it.Detail})
	}

	t := styledTable(rows, func(row, col int) (lipgloss.Style, bool) {
		if col != 1 || row < 0 || row >= len(r.Items) {
			return lipgloss.Style{}, false
		}
		if r.Items[row].OK {
			return okStyle, true
		}
		return badStyle, true
	}, "Check", "Status", "Detail")

	fmt.Println(headerStyle.Render("robotross check"))
	fmt.Println(t.Render())

	if !r.Ready() {
		fmt.Println(failStyle.Render("System not ready."))
		return errNotReady
	}
	fmt.Println(successStyle.Render("All systems ready."))
	return nil
}
