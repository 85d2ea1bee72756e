package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/speters/mdcd/mdc"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func parseOnOff(arg string) (bool, error) {
	switch strings.ToLower(arg) {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", arg)
}

func powerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "power on|off",
		Short:     "Switch display power",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(_ *cobra.Command, args []string) error {
			on, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			return runControl(func(c mdc.DisplayControl) error {
				if on {
					return c.SetPowerOn()
				}
				return c.SetPowerOff()
			})
		},
	}
	addTargetFlags(cmd, true)
	return cmd
}

func panelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "panel on|off",
		Short:     "Switch the backlight panel, the display stays powered",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(_ *cobra.Command, args []string) error {
			on, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			return runControl(func(c mdc.DisplayControl) error {
				if on {
					return c.SetPanelOn()
				}
				return c.SetPanelOff()
			})
		},
	}
	addTargetFlags(cmd, true)
	return cmd
}

func runControl(fn func(mdc.DisplayControl) error) error {
	ctx, stop := listenStop()
	defer stop()
	s, closer, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()

	c, err := controller(s)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	log.Infof("Done")
	return nil
}

func statusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query power and panel state of one display",
		Args:  cobra.ExactArgs(0),
		RunE: func(*cobra.Command, []string) error {
			id, err := checkDisplayID(displayID)
			if err != nil {
				return err
			}
			ctx, stop := listenStop()
			defer stop()
			s, closer, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer closer.Close()

			d := s.Display(id)
			power, err := d.PowerStatus()
			if err != nil {
				return fmt.Errorf("power status: %w", err)
			}
			panel, err := d.PanelStatus()
			if err != nil {
				return fmt.Errorf("panel status: %w", err)
			}
			fmt.Printf("display %d: power %v, panel %v\n", id, power, panel)
			return nil
		},
	}
	addTargetFlags(cmd, false)
	return cmd
}

func blinkCommand() *cobra.Command {
	interval := 5 * time.Second
	count := 0

	cmd := &cobra.Command{
		Use:   "blink",
		Short: "Toggle the panel on and off until interrupted",
		Args:  cobra.ExactArgs(0),
		RunE: func(*cobra.Command, []string) error {
			ctx, stop := listenStop()
			defer stop()
			s, closer, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer closer.Close()

			c, err := controller(s)
			if err != nil {
				return err
			}

			on := true
			for i := 0; count == 0 || i < count; i++ {
				if on {
					err = c.SetPanelOn()
				} else {
					err = c.SetPanelOff()
				}
				if err != nil {
					return err
				}
				log.Infof("Panel %v", map[bool]string{true: "ON", false: "OFF"}[on])
				on = !on

				select {
				case <-ctx.Done():
					return nil
				case <-time.After(interval):
				}
			}
			return nil
		},
	}
	addTargetFlags(cmd, true)
	cmd.Flags().DurationVar(&interval, "interval", interval, "time between toggles")
	cmd.Flags().IntVar(&count, "count", count, "number of toggles, 0 toggles until interrupted")
	return cmd
}

func rawCommand() *cobra.Command {
	command := ""
	data := ""

	cmd := &cobra.Command{
		Use:   "raw",
		Short: "Send a raw frame and print the reply",
		Args:  cobra.ExactArgs(0),
		RunE: func(*cobra.Command, []string) error {
			c, err := strconv.ParseUint(command, 0, 8)
			if err != nil {
				return fmt.Errorf("parse --cmd: %w", err)
			}
			payload, err := hex.DecodeString(strings.ReplaceAll(data, " ", ""))
			if err != nil {
				return fmt.Errorf("parse --data: %w", err)
			}

			target := mdc.Broadcast
			if !broadcast {
				if target, err = checkDisplayID(displayID); err != nil {
					return err
				}
			}

			ctx, stop := listenStop()
			defer stop()
			s, closer, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer closer.Close()

			if err := s.Send(mdc.NewFrame(mdc.CommandType(c), target, payload)); err != nil {
				return err
			}
			if target == mdc.Broadcast {
				fmt.Println("Sent")
				return nil
			}

			reply, err := s.Receive()
			if err != nil {
				return err
			}
			fmt.Printf("Response: %v\n", reply)
			return nil
		},
	}
	addTargetFlags(cmd, true)
	cmd.Flags().StringVar(&command, "cmd", command, "command id, e.g. 0xF9")
	cmd.Flags().StringVar(&data, "data", data, "payload as hex, e.g. \"00\"")
	_ = cmd.MarkFlagRequired("cmd")
	return cmd
}
