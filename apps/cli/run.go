package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/diemdanh/core/attendance"
)

// runUnit marks one class. When interactive, the browser is opened first and the
// run starts once the user confirms they are logged in.
func (cli *commandLine) runUnit(ctx context.Context, data attendance.UpdateUnit, login bool) error {
	u := cli.svc.AddUnit()
	u, err := cli.svc.ConfigureUnit(u.ID, data)
	if err != nil {
		return err
	}

	if login && stdinIsTerminal() {
		// no browser for a form that cannot run
		if err = cli.svc.ValidateUnit(u.ID); err != nil {
			return err
		}
		if err = cli.svc.EnsureSession(ctx, u.ID); err != nil {
			return errors.Wrap(err, "opening browser")
		}
		_, _ = fmt.Fprintln(cli.out, "Log in to the attendance page in the opened browser, then press Enter.")
		if err = waitForLoginFunc(os.Stdin); err != nil {
			return errors.Wrap(err, "waiting for login")
		}
	}

	report, err := cli.svc.RunUnit(ctx, u.ID)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cli.out, cli.svc.RenderReport(report))
	if report.HasFailures() {
		return errFailures
	}
	return nil
}

func (cli *commandLine) validate(roster, online string) error {
	ids, err := cli.validator.ParseRoster(roster)
	if err != nil {
		return err
	}
	set, err := cli.validator.ParseOnline(online)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%d students, %d online\n", len(ids), set.Len())
	return nil
}
