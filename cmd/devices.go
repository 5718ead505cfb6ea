package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/avstudio/pkg/avstudio"
)

var devicesCmd = &cobra.Command{
	Use:     "devices",
	Aliases: []string{"device"},
	Short:   "Manage the devices paired with the account",
}

// rawCommand builds a devices subcommand printing the platform's answer
func rawCommand(use string, short string, args cobra.PositionalArgs, call func(d *avstudio.Devices, args []string) (json.RawMessage, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,

		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := devicesClient()
			if err != nil {
				return err
			}

			res, err := call(d, args)
			if err != nil {
				return err
			}

			return printRaw(res)
		},
	}
}

var devicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the devices",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := devicesClient()
		if err != nil {
			return err
		}

		devices, err := d.GetAll()
		if err != nil {
			return err
		}

		if viper.GetBool("devices.json") {
			return printJSON(devices)
		}

		for _, dev := range devices {
			fmt.Fprintf(_stdout, "%s\t%s\n", dev.ID(), dev.Name())
		}
		return nil
	},
}

var devicesGetCmd = &cobra.Command{
	Use:   "get <device-id>",
	Short: "Show one device",
	Args:  cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := devicesClient()
		if err != nil {
			return err
		}

		dev, err := d.Get(args[0])
		if err != nil {
			return err
		}

		return printJSON(dev)
	},
}

var devicesDeleteAllCmd = &cobra.Command{
	Use:   "delete-all",
	Short: "Delete every device, stopping at the first failure",
	Args:  cobra.NoArgs,

	PreRunE: func(cmd *cobra.Command, args []string) error {
		return confirmed(cmd)
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := devicesClient()
		if err != nil {
			return err
		}

		if err := d.DeleteAll(); err != nil {
			return err
		}

		fmt.Fprintln(_stdout, "All devices deleted")
		return nil
	},
}

var devicesStateImageCmd = &cobra.Command{
	Use:   "state-image <device-id> <file>",
	Short: "Download the device's current state snapshot",
	Args:  cobra.ExactArgs(2),

	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := devicesClient()
		if err != nil {
			return err
		}

		if _, err := d.GetStateImage(args[0], args[1]); err != nil {
			return err
		}

		fmt.Fprintf(_stdout, "Saved %s\n", args[1])
		return nil
	},
}

// confirmed refuses destructive commands run without --yes
func confirmed(cmd *cobra.Command) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return fmt.Errorf("%s deletes data on the platform, pass --yes to go ahead", cmd.CommandPath())
	}

	return nil
}

func init() {
	devicesListCmd.Flags().Bool("json", false, "print the full device objects as JSON")
	errPanic(viper.GetViper().BindPFlag("devices.json", devicesListCmd.Flags().Lookup("json")))

	devicesDeleteAllCmd.Flags().Bool("yes", false, "confirm the deletion")

	devicesCmd.AddCommand(
		devicesListCmd,
		devicesGetCmd,
		rawCommand("add <device-id> <name>", "Pair a device with the account", cobra.ExactArgs(2),
			func(d *avstudio.Devices, args []string) (json.RawMessage, error) {
				return d.Add(args[0], args[1])
			}),
		rawCommand("rename <device-id> <name>", "Rename a device", cobra.ExactArgs(2),
			func(d *avstudio.Devices, args []string) (json.RawMessage, error) {
				return d.SetName(args[0], args[1])
			}),
		rawCommand("delete <device-id>", "Delete a device", cobra.ExactArgs(1),
			func(d *avstudio.Devices, args []string) (json.RawMessage, error) {
				return d.Delete(args[0])
			}),
		devicesDeleteAllCmd,
		rawCommand("unpair <device-id>", "Detach a device from the account", cobra.ExactArgs(1),
			func(d *avstudio.Devices, args []string) (json.RawMessage, error) {
				return d.Unpair(args[0])
			}),
		rawCommand("run <device-id> <command>", "Send a command to a device", cobra.ExactArgs(2),
			func(d *avstudio.Devices, args []string) (json.RawMessage, error) {
				return d.RunCommand(args[0], args[1])
			}),
		rawCommand("timeline <device-id> <from> <to>", "List the thumbnails recorded between two times", cobra.ExactArgs(3),
			func(d *avstudio.Devices, args []string) (json.RawMessage, error) {
				return d.GetTimeline(args[0], args[1], args[2])
			}),
		rawCommand("waveform <device-id> <from> <to>", "Fetch the audio waveform between two times", cobra.ExactArgs(3),
			func(d *avstudio.Devices, args []string) (json.RawMessage, error) {
				return d.GetWaveform(args[0], args[1], args[2])
			}),
		rawCommand("thumbnail <device-id> <from> <to>", "Fetch the thumbnails between two times", cobra.ExactArgs(3),
			func(d *avstudio.Devices, args []string) (json.RawMessage, error) {
				return d.GetThumbnail(args[0], args[1], args[2])
			}),
		devicesStateImageCmd,
	)

	rootCmd.AddCommand(devicesCmd)
}
