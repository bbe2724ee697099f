package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sweeney/alarm-module/internal/config"
	"github.com/sweeney/alarm-module/internal/gpio"
	"github.com/sweeney/alarm-module/internal/logic"
	"github.com/sweeney/alarm-module/internal/store"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the current input levels and exit",
	Long: `Read every input line once and print what the module would see.

The lines must be free: stop the daemon first.`,
	Args: cobra.NoArgs,
	RunE: runState,
}

var modeCmd = &cobra.Command{
	Use:   "mode [non-connected|connected|factory]",
	Short: "Show or set the persisted connect mode",
	Long: `Without an argument, print the connect mode held in the store. With one,
write it. The daemon reads the mode at startup; factory mode selects the long
auto-arm interval.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMode,
}

func init() {
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(modeCmd)
}

// inputState is a one-shot reading of the input lines, already decoded.
type inputState struct {
	Open       [logic.ChannelCount]bool
	PowerGood  bool
	Master     bool
	KeyPresent bool
}

func runState(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	lines, err := gpio.NewRealLines(cfg.GPIO.Chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer lines.Close()

	s, err := readInputs(lines, cfg.GPIO)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderState(s))
	return nil
}

func readInputs(lines gpio.Lines, g config.GPIOConfig) (inputState, error) {
	var s inputState
	read := func(pin int, pull gpio.Pull, name string) (bool, error) {
		if err := lines.Input(pin, pull, nil); err != nil {
			return false, fmt.Errorf("%s: %w", name, err)
		}
		high, err := lines.Level(pin)
		if err != nil {
			return false, fmt.Errorf("read %s: %w", name, err)
		}
		return high, nil
	}

	for ch, pin := range g.Channels {
		if ch >= logic.ChannelCount {
			break
		}
		high, err := read(pin, gpio.PullUp, fmt.Sprintf("channel %d", ch))
		if err != nil {
			return s, err
		}
		s.Open[ch] = high
	}

	var err error
	if s.PowerGood, err = read(g.PowerGood, gpio.PullNone, "power good"); err != nil {
		return s, err
	}
	notMaster, err := read(g.NotMaster, gpio.PullUp, "nMASTER")
	if err != nil {
		return s, err
	}
	s.Master = !notMaster
	canArm, err := read(g.NotDisarm, gpio.PullNone, "nDISARM")
	if err != nil {
		return s, err
	}
	s.KeyPresent = !canArm
	return s, nil
}

func renderState(s inputState) string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Width(12)

	okStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	badStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	row := func(label, value string, ok bool) string {
		st := okStyle
		if !ok {
			st = badStyle
		}
		return labelStyle.Render(label) + st.Render(value)
	}
	pick := func(b bool, yes, no string) string {
		if b {
			return yes
		}
		return no
	}

	var rows []string
	for ch, open := range s.Open {
		rows = append(rows, row(fmt.Sprintf("Channel %d", ch), pick(open, "OPEN", "CLOSED"), !open))
	}
	rows = append(rows, "")
	rows = append(rows, row("Power", pick(s.PowerGood, "GOOD", "LOST"), s.PowerGood))
	rows = append(rows, row("Role", pick(s.Master, "MASTER", "SLAVE"), true))
	rows = append(rows, row("Disarm key", pick(s.KeyPresent, "PRESENT", "ABSENT"), true))

	return boxStyle.Render(titleStyle.Render("Alarm Module Inputs") + "\n\n" + strings.Join(rows, "\n"))
}

func runMode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Store.Path == "" {
		return errors.New("no store path configured")
	}
	return modeCommand(store.NewFileStore(cfg.Store.Path), args, cmd.OutOrStdout())
}

func modeCommand(st store.Store, args []string, w io.Writer) error {
	rec, err := st.Load()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		fmt.Fprintln(w, rec.Mode)
		return nil
	}
	m, err := store.ParseMode(args[0])
	if err != nil {
		return err
	}
	rec.Mode = m
	if err := st.Save(rec); err != nil {
		return fmt.Errorf("save store: %w", err)
	}
	fmt.Fprintf(w, "mode set to %s\n", m)
	return nil
}
