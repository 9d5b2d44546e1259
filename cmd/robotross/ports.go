package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/robotross/pkg/arm"
)

type PortsCommand struct {
	Servos string `long:"servos" description:"Also scan this port for Feetech servos (pen lift)"`
	MaxID  int    `long:"max-id" default:"10" description:"Highest servo ID to scan"`
}

func (c *PortsCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("Serial ports"))

	ports, err := arm.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		fmt.Println("Make sure the arm is connected and powered on.")
	} else {
		matchStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
		rows := make([][]string, 0, len(ports))
		for _, p := range ports {
			match := ""
			if p.Match {
				match = "yes"
			}
			rows = append(rows, []string{p.Name, p.VID, p.PID, p.Bridge, p.Product, match})
		}
		fmt.Println(styledTable(rows, func(row, col int) (lipgloss.Style, bool) {
			if col == 5 && row >= 0 && row < len(ports) && ports[row].Match {
				return matchStyle, true
			}
			return lipgloss.Style{}, false
		}, "Port", "VID", "PID", "Bridge", "Product", "Arm").Render())
	}

	if c.Servos == "" {
		return nil
	}

	fmt.Println()
	fmt.Println(subHeaderStyle.Render("Servos on " + c.Servos))
	servos, err := arm.ScanServos(context.Background(), c.Servos, 1, c.MaxID)
	if err != nil {
		return err
	}
	if len(servos) == 0 {
		fmt.Println("No servos answered.")
		return nil
	}
	rows := make([][]string, 0, len(servos))
	for _, s := range servos {
		pos := "?"
		if s.Position >= 0 {
			pos = strconv.Itoa(s.Position)
		}
		rows = append(rows, []string{strconv.Itoa(s.ID), s.Model, pos})
	}
	fmt.Println(styledTable(rows, nil, "ID", "Model", "Position").Render())
	fmt.Println(dimStyle.Render("Set ROBOTROSS_PEN_SERVO_ID, _UP and _DOWN from these values."))
	return nil
}

// styledTable renders rows the way every command prints tables. override
// may restyle single cells.
func styledTable(rows [][]string, override func(row, col int) (lipgloss.Style, bool), headers ...string) *table.Table {
	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if override != nil {
				if s, ok := override(row, col); ok {
					return s
				}
			}
			return tableCellStyle
		})
}
