package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chaz8081/gatekeeper/internal/credstore"
)

var (
	loginPassword string
	loginLabel    string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the gate password and device label",
	Long: `Store the gate password and the label this machine presents to the
gate. The next "gatekeeper run" authenticates with them automatically.
Without --password the password is read from standard input.`,
	RunE: runLogin,
}

var forgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Delete the stored gate credentials",
	RunE:  runForget,
}

func init() {
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "gate password")
	loginCmd.Flags().StringVar(&loginLabel, "label", "", "device label (default: credentials.device_label)")
	rootCmd.AddCommand(loginCmd, forgetCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	password := loginPassword
	if password == "" {
		password, err = readPassword(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
	}
	if password == "" {
		return errors.New("password must not be empty")
	}
	label := loginLabel
	if label == "" {
		label = cfg.Credentials.DeviceLabel
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}
	if err := credstore.Save(store, credstore.Credentials{Password: password, DeviceLabel: label}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Credentials stored for %q (%s backend).\n", label, cfg.Credentials.Backend)
	return nil
}

func readPassword(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok {
		if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
			fmt.Fprint(out, "Gate password: ")
		}
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runForget(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}
	if err := credstore.Forget(store); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Credentials deleted.")
	return nil
}
