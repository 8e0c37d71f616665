package bot

import (
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"autotyper/internal/control"
)

// Callback data of the inline buttons
const (
	cbToggleParsing  = "toggle_parsing"
	cbForceParse     = "force_parse"
	cbToggleMemory   = "toggle_memory"
	cbToggleErrors   = "toggle_errors"
	cbToggleContinue = "toggle_continue"
	cbShowTyped      = "show_typed"
	cbErrorChance    = "set_error_chance"
	cbCustomDelay    = "set_custom_delay"
	cbSpeedMenu      = "show_speed_menu"
	cbMenu           = "menu"
	speedPrefix      = "speed_"
)

const helpText = `Hi! I drive the typing engine.
Commands:
/starttyping - start typing
/stopping - stop typing
/status - show the settings
/typed - show recently typed words
/menu - settings menu`

type toggleFlag struct {
	name  string
	label string
}

var toggleFlags = map[string]toggleFlag{
	cbToggleParsing:  {"parsing", "Parsing"},
	cbToggleMemory:   {"memory", "Memory"},
	cbToggleErrors:   {"errors", "Errors"},
	cbToggleContinue: {"continue", "Continue"},
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// settingsText renders the status as an HTML message
func settingsText(st control.Status) string {
	var sb strings.Builder
	sb.WriteString("<b>Current settings</b>\n")
	sb.WriteString("Parsing (auto): " + onOff(st.ParsingEnabled) + "\n")
	sb.WriteString("Force parse pending: " + yesNo(st.ForceParse) + "\n")
	sb.WriteString("Memory: " + onOff(st.MemoryEnabled) + "\n")
	sb.WriteString("Errors: " + onOff(st.ErrorsEnabled) + " (chance " + formatFloat(st.ErrorChance) + "%)\n")
	sb.WriteString("Extra delay: " + formatFloat(st.CustomDelay) + " s\n")
	sb.WriteString("Speed: " + html.EscapeString(st.Speed) + "\n")
	sb.WriteString("Continue mode: " + onOff(st.ContinueMode) + "\n")
	sb.WriteString("Typing: " + yesNo(st.Running) + " (queued " + strconv.Itoa(st.QueueLen) + ")")
	return sb.String()
}

func mainMenu(st control.Status) tgbotapi.InlineKeyboardMarkup {
	btn := tgbotapi.NewInlineKeyboardButtonData
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			btn("Parsing: "+onOff(st.ParsingEnabled), cbToggleParsing),
			btn("Force parse", cbForceParse),
		),
		tgbotapi.NewInlineKeyboardRow(
			btn("Memory: "+onOff(st.MemoryEnabled), cbToggleMemory),
			btn("Errors: "+onOff(st.ErrorsEnabled), cbToggleErrors),
		),
		tgbotapi.NewInlineKeyboardRow(
			btn("Continue: "+onOff(st.ContinueMode), cbToggleContinue),
			btn("Show typed", cbShowTyped),
		),
		tgbotapi.NewInlineKeyboardRow(
			btn("Error chance", cbErrorChance),
			btn("Extra delay", cbCustomDelay),
		),
		tgbotapi.NewInlineKeyboardRow(
			btn("Speed: "+st.Speed, cbSpeedMenu),
		),
	)
}

// speedMenu has one button per profile, two per row, plus a way back
func speedMenu(profiles []string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, name := range profiles {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(name, speedPrefix+name))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("« Back", cbMenu)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
