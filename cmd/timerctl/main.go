package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"timepon/engine/internal/room"
	"timepon/engine/internal/service"
	"timepon/engine/internal/syncclient"
)

var clock = clockwork.NewRealClock()

func usage() {
	fmt.Fprintf(os.Stderr, `usage: timerctl [flags] <command> [args]

commands:
  create                       allocate a room and print its id and admin key
  get                          print the room once
  start [-dur SEC]             start or resume
  pause | reset
  msg TEXT                     push a message to the stage
  flash on|off
  prompt on|off                show the message without the clock
  settings [flags]             update duration, warnings, colors, language
  stage                        act as the stage display
  operate                      act as the operator console
  watch ID[,ID...]             stream rooms over the websocket

flags:
`)
	flag.PrintDefaults()
}

func main() {
	server := flag.String("server", envOr("TIMEPON_SERVER", "http://localhost:8080"), "Engine base URL")
	id := flag.String("id", os.Getenv("TIMEPON_ROOM"), "Room id")
	key := flag.String("key", os.Getenv("TIMEPON_KEY"), "Admin key")
	timeout := flag.Duration("timeout", 10*time.Second, "Per-request timeout for one-shot commands")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	c := syncclient.New(*server, nil)
	cmd, args := flag.Arg(0), flag.Args()[1:]

	// long-running roles stop on signal; everything else on timeout
	switch cmd {
	case "stage", "operate", "watch":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		var err error
		switch cmd {
		case "stage":
			err = runStage(ctx, c, need(*id, "-id"))
		case "operate":
			err = runOperate(ctx, c, need(*id, "-id"), need(*key, "-key"))
		case "watch":
			if len(args) == 0 {
				log.Fatalf("watch: room ids required")
			}
			err = runWatch(ctx, c, strings.Split(args[0], ","))
		}
		if err != nil && ctx.Err() == nil {
			log.Fatalf("%s: %v", cmd, err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := runOnce(ctx, c, cmd, args, *id, *key); err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func runOnce(ctx context.Context, c *syncclient.Client, cmd string, args []string, id, key string) error {
	switch cmd {
	case "create":
		rid, rkey, err := c.Create(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("id:  %s\nkey: %s\n", rid, rkey)
		return nil

	case "get":
		v, err := c.Get(ctx, need(id, "-id"))
		if err != nil {
			return err
		}
		printView(v)
		return nil

	case "start":
		fs := flag.NewFlagSet("start", flag.ExitOnError)
		dur := fs.Int64("dur", 0, "Duration in seconds (0 keeps the room's)")
		fs.Parse(args)
		extra := url.Values{}
		if *dur > 0 {
			extra.Set("durationSec", fmt.Sprint(*dur))
		}
		return c.Command(ctx, need(id, "-id"), need(key, "-key"), string(room.CmdStart), extra)

	case "pause":
		return c.Command(ctx, need(id, "-id"), need(key, "-key"), string(room.CmdPause), nil)
	case "reset":
		return c.Command(ctx, need(id, "-id"), need(key, "-key"), string(room.CmdReset), nil)

	case "msg":
		return c.Command(ctx, need(id, "-id"), need(key, "-key"), string(room.CmdMessage),
			url.Values{"text": {strings.Join(args, " ")}})

	case "flash", "prompt":
		if len(args) != 1 {
			return fmt.Errorf("expected on|off")
		}
		name := room.CmdFlash
		if cmd == "prompt" {
			name = room.CmdPromptOnly
		}
		on := "0"
		if room.ParseBool(args[0]) {
			on = "1"
		}
		return c.Command(ctx, need(id, "-id"), need(key, "-key"), string(name), url.Values{"on": {on}})

	case "settings":
		fields, err := settingsFlags(args)
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return fmt.Errorf("no settings given")
		}
		return c.Settings(ctx, need(id, "-id"), need(key, "-key"), fields)
	}
	usage()
	os.Exit(2)
	return nil
}

// settingsFlags forwards only the flags that were set so the engine leaves
// the rest of the room untouched.
func settingsFlags(args []string) (url.Values, error) {
	fs := flag.NewFlagSet("settings", flag.ContinueOnError)
	fs.Int("dur", 0, "Duration in minutes")
	fs.Int("warn1", 0, "First warning, minutes before the end")
	fs.Int("warn2", 0, "Second warning, minutes before the end")
	fs.String("normal", "", "Normal color, #rrggbb")
	fs.String("color1", "", "First warning color")
	fs.String("color2", "", "Second warning color")
	fs.String("lang", "", "Display language")
	fs.Bool("autoprompt", false, "Push warning prompts automatically")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	names := map[string]string{
		"dur":        "durMin",
		"warn1":      "warn1Min",
		"warn2":      "warn2Min",
		"normal":     "colorNormal",
		"color1":     "colorWarn1",
		"color2":     "colorWarn2",
		"lang":       "lang",
		"autoprompt": "autoPrompt",
	}
	out := url.Values{}
	fs.Visit(func(f *flag.Flag) {
		v := f.Value.String()
		if f.Name == "autoprompt" {
			v = "0"
			if room.ParseBool(f.Value.String()) {
				v = "1"
			}
		}
		out.Set(names[f.Name], v)
	})
	return out, nil
}

func runStage(ctx context.Context, c *syncclient.Client, id string) error {
	cell := syncclient.NewCell(clock)
	p := syncclient.NewPoller(cell, func(ctx context.Context) (service.View, error) {
		return c.Heartbeat(ctx, id, true)
	}, clock, 0)
	p.Observe(syncclient.NewStageAcks(c, id).Observe)

	go repaint(ctx, cell)
	fmt.Printf("[stage] room %s\n", id)
	return p.Run(ctx)
}

func runOperate(ctx context.Context, c *syncclient.Client, id, key string) error {
	cell := syncclient.NewCell(clock)
	p := syncclient.NewPoller(cell, func(ctx context.Context) (service.View, error) {
		return c.Get(ctx, id)
	}, clock, 0)
	p.Observe(syncclient.NewAutoPrompt(c, cell, id, key).Observe)

	go repaint(ctx, cell)
	fmt.Printf("[operate] room %s\n", id)
	return p.Run(ctx)
}

func runWatch(ctx context.Context, c *syncclient.Client, ids []string) error {
	cells := map[string]*syncclient.Cell{}
	return c.Watch(ctx, ids, func(v service.View) {
		cell, ok := cells[v.State.ID]
		if !ok {
			cell = syncclient.NewCell(clock)
			cells[v.State.ID] = cell
		}
		cell.Update(v)
		f := cell.Render()
		fmt.Printf("%s  %-8s %7s  %-8s stage=%v\n", v.State.ID, f.State, f.Clock, f.Tier, f.StageOnline)
	})
}

// repaint redraws the clock line four times a second from the cell.
func repaint(ctx context.Context, cell *syncclient.Cell) {
	t := clock.NewTicker(250 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case <-t.Chan():
		}
		if _, ok := cell.Snapshot(); !ok {
			continue
		}
		f := cell.Render()
		line := fmt.Sprintf("%7s  %-8s %-7s", f.Clock, f.Tier, f.State)
		if f.Message != "" {
			line += "  » " + f.Message + " [" + string(f.MsgStatus) + "]"
		}
		if f.Flash {
			line += "  FLASH"
		}
		fmt.Printf("\r\033[K%s", line)
	}
}

func printView(v service.View) {
	st := v.State
	fmt.Printf("room:      %s (exists=%v, version %d)\n", st.ID, v.Exists, st.Version)
	fmt.Printf("state:     %s\n", st.State)
	fmt.Printf("remaining: %s (%s)\n", syncclient.FormatRemaining(v.Remaining), v.Tier)
	fmt.Printf("duration:  %d min, warn %d/%d min\n", st.DurationMinutes(), st.Warn1Min, st.Warn2Min)
	fmt.Printf("stage:     online=%v\n", v.StageOnline)
	if st.Message != "" {
		fmt.Printf("message:   %q [%s]\n", st.Message, v.MsgStatus)
	}
}

func need(v, flagName string) string {
	if v == "" {
		log.Fatalf("%s is required", flagName)
	}
	return v
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
