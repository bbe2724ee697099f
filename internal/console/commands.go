package console

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/sweeney/alarm-module/internal/logic"
)

type command struct {
	name   string
	length int
	usage  string
	run    func(c *Console, msg string, w *strings.Builder)
}

// Lengths count the whole line, command letters included.
var commands = []command{
	{"BV", 2, "NG Error - BV\n", (*Console).batteryLevel},
	{"CR", 2, "NG Error - CR\n", (*Console).toggleDebug},
	{"FF", 2, "NG Error - FF\n", (*Console).toggleFlash},
	{"GS", 2, "NG Error - GS\n", (*Console).getStatus},
	{"GV", 2, "NG Error - GV\n", (*Console).getVersion},
	{"PT", 5, "NG Error - PT <NN>\n", (*Console).playTune},
	{"RB", 4, "NG Error - RB <N>\n", (*Console).reboot},
	{"SA", 4, "NG Error - SA <N>\n", (*Console).setArm},
	{"SH", 9, "NG Error - SH <VV><AA><SS>\n", (*Console).setUserConfig},
	{"SU", 10, "NG Error - SU<BBBB><CCCC>\r", (*Console).startUpdate},
	{"SW", 2, "NG Error - SW\r", (*Console).switchUpdate},
	{"??", 2, "NG Error - ??\n", (*Console).help},
}

// Execute runs one command line (without its terminating CR) and returns
// everything the command printed.
func (c *Console) Execute(line string) string {
	var w strings.Builder
	for _, cmd := range commands {
		if !strings.HasPrefix(line, cmd.name) {
			continue
		}
		if len(line) != cmd.length {
			w.WriteString(cmd.usage)
			return w.String()
		}
		cmd.run(c, line, &w)
		return w.String()
	}
	w.WriteString("NG Invalid command received\n")
	return w.String()
}

func (c *Console) batteryLevel(_ string, w *strings.Builder) {
	if c.Battery == nil {
		w.WriteString("NG Error - BV\n")
		return
	}
	mv, ok := c.Battery()
	if !ok {
		w.WriteString("NG Error - BV\n")
		return
	}
	fmt.Fprintf(w, "\n\nBattery Voltage: %d \n", mv)
}

func (c *Console) toggleDebug(_ string, w *strings.Builder) {
	fmt.Fprintf(w, "CR: %d\n", b2i(c.debug.Toggle()))
}

func (c *Console) toggleFlash(_ string, w *strings.Builder) {
	c.sound.ToggleDisarmFlash()
	if c.sound.DisarmFlash() {
		w.WriteString("\nDisarmed_Flash_Pin: HIGH\n")
	} else {
		w.WriteString("\nDisarmed_Flash_Pin: Low\n")
	}
}

func (c *Console) getStatus(_ string, w *strings.Builder) {
	dbg := c.debug.Enabled()
	w.WriteString("\n\nGET STATUS:\r\r")

	mod := c.module.Status()
	w.WriteString("\r\rSYSTEM STATUS:\r")
	fmt.Fprintf(w, "\tAM Status: 0x%02x\r", mod.Pack())
	fmt.Fprintf(w, "\tAM.isMaster: %c\r", flag(mod.IsMaster))
	fmt.Fprintf(w, "\tAM.Powered: %c\r", flag(mod.Powered))
	if dbg {
		fmt.Fprintf(w, "\tAM.notCharging: %c\r", flag(mod.NotCharging))
		fmt.Fprintf(w, "\tAM.deepSleep: %c\r", flag(mod.DeepSleep))
		fmt.Fprintf(w, "\tAM.shutDown: %c\r", flag(mod.ShutDown))
	}
	fmt.Fprintf(w, "\tAM.switchLifted: %c\r", flag(mod.SwitchLifted))
	if c.module.CanArm() {
		w.WriteString("\tnDISARM 1: Can Arm\r")
	} else {
		w.WriteString("\tnDISARM 0: Can't Arm\r")
	}

	w.WriteString("\rDAISY CHAIN STATUS:\r")
	fmt.Fprintf(w, "\rCR: %d\r", b2i(dbg))

	st := c.machine.AlarmStatus()
	w.WriteString("\rARM STATUS:\r")
	fmt.Fprintf(w, "\r\tarmed: %c\r", flag(st.Armed))
	fmt.Fprintf(w, "\tsilentAlarm: %c\r", flag(st.SilentAlarm))
	fmt.Fprintf(w, "\tchannel_Alarm: %c\r", flag(st.ChannelAlarm))
	fmt.Fprintf(w, "\tpowerTamper_Armed: %c\r", flag(st.PowerTamperArmed))
	fmt.Fprintf(w, "\tpowerTamper_Alarm: %c\r", flag(st.PowerTamperAlarm))
	fmt.Fprintf(w, "\tdaisyChainTamper_Alarm: %c\r", flag(st.DaisyChainTamperAlarm))
	fmt.Fprintf(w, "\tdaisyChainTamper_Armed: %c\r", flag(st.DaisyChainTamperArmed))

	w.WriteString("\rCHANNEL STATUS:\r")
	for ch, cs := range c.channels.All() {
		fmt.Fprintf(w, "\r\tChannel %d Status : 0x%02x\r", ch, cs.Pack())
		fmt.Fprintf(w, "\tcablePresent: %c\r", flag(cs.CablePresent))
		fmt.Fprintf(w, "\tarmed: %c\r", flag(cs.Armed))
		fmt.Fprintf(w, "\talarming: %c\r", flag(cs.Alarming))
	}

	w.WriteString("\rBATTERY STATUS:\r")
	if c.Battery != nil {
		if mv, ok := c.Battery(); ok {
			fmt.Fprintf(w, "\tLevel: %d mV\r", mv)
		}
	}
}

func (c *Console) getVersion(_ string, w *strings.Builder) {
	fmt.Fprintf(w, "NN%s%s\t%s\t%s\r", c.id.Serial, c.id.Model, c.id.ModelVersion, c.id.AppVersion)
}

func (c *Console) playTune(msg string, w *strings.Builder) {
	p := logic.Pattern(parseHex(msg[3:5]))
	fmt.Fprintf(w, "\n\nPLAY TUNE: 0x%02X\n", uint8(p))
	if c.machine.IsAnyAlarmActive() {
		return
	}
	c.sound.StopBuzzerPattern(c.sound.Playing())
	c.sound.StartBuzzerPattern(p)
}

func (c *Console) reboot(msg string, w *strings.Builder) {
	node := parseHex(msg[3:4]) & 0x0F
	w.WriteString("\n\nREBOOT REQUEST:\t")
	if node != 0 || c.Reboot == nil {
		return
	}
	if c.debug.Enabled() {
		w.WriteString("Software Resetting Module\n")
	}
	if err := c.Reboot(); err != nil {
		log.Printf("console: reboot: %v", err)
	}
}

func (c *Console) setArm(msg string, w *strings.Builder) {
	w.WriteString("\n\nSET ARM/DISARM:\n")
	switch msg[3] {
	case '1':
		w.WriteString("\nRequesting product ARM...\n")
		if c.machine.ArmRequest(false, logic.ArmIgnoreNone) {
			w.WriteString("SUCCESS, Armed!\n")
		} else {
			w.WriteString("Failure, still disarmed!\n")
			c.whyArmFailed(w)
		}
	case '0':
		c.machine.Disarm(0)
		w.WriteString("\nDISARMED!\n\n")
	case '2':
		if c.machine.SilenceAlarm() {
			w.WriteString("\nSilenced!\n\n")
		} else {
			w.WriteString("\nDISARMED!\n\n")
		}
	default:
		w.WriteString("\n\tInvalid ARM/DISARM command\n")
		w.WriteString("\tSA 0 = DISARM\n")
		w.WriteString("\tSA 1 = ARM\n")
		w.WriteString("\tSA 2 = SILENCE\n")
	}
}

func (c *Console) whyArmFailed(w *strings.Builder) {
	if !c.module.PowerGood() {
		w.WriteString("\tNot Powered\n")
	}
	if !c.module.CanArm() {
		w.WriteString("\tDisarm Key Present\n")
	}
	if c.machine.DisarmDurationRunning() {
		w.WriteString("\tDisarm Duration Running\n")
	}
	present := false
	for _, cs := range c.channels.All() {
		present = present || cs.CablePresent
	}
	if !present {
		w.WriteString("\tNo Cable Present\n")
	}
}

func (c *Console) setUserConfig(msg string, w *strings.Builder) {
	w.WriteString("\n\nSET USER CONFIG:\n")
	rec, err := c.store.Load()
	if err != nil {
		log.Printf("console: load store: %v", err)
		return
	}
	rec.User.Volume = parseHex(msg[3:5])
	rec.User.Alarm = parseHex(msg[5:7])
	rec.User.Security = parseHex(msg[7:9])
	if err := c.store.Save(rec); err != nil {
		log.Printf("console: save user config: %v", err)
	}
}

// Firmware update is handled by the package manager, not the console.
func (c *Console) startUpdate(_ string, w *strings.Builder) {
	w.WriteString("NG Error - SU<BBBB><CCCC>\r")
}

func (c *Console) switchUpdate(_ string, w *strings.Builder) {
	w.WriteString("NG Error - SW\r")
}

func (c *Console) help(_ string, w *strings.Builder) {
	w.WriteString("\n")
	w.WriteString("BV - Battery Voltage\n")
	w.WriteString("CR - Print debug data to UART\n")
	w.WriteString("FF - Toggle disarmed flash output\n")
	w.WriteString("GS - Get Status\n")
	w.WriteString("GV - Get Version\n")
	w.WriteString("PT <NN> - Play Tune\n")
	w.WriteString("RB <N> - Reboot\n")
	w.WriteString("SA <N> - Set Arm/Disarm\n")
	w.WriteString("SH <VV><AA><SS> - Set User Config\n")
	w.WriteString("?? - Help\n")
	w.WriteString("\n")
}

// parseHex reads the leading hex digits of s, returning 0 when there are none.
func parseHex(s string) uint8 {
	end := 0
	for end < len(s) && isHex(s[end]) {
		end++
	}
	v, err := strconv.ParseUint(s[:end], 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func isHex(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func flag(b bool) byte {
	if b {
		return '1'
	}
	return '0'
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
