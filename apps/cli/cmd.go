package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/trezcool/diemdanh/core/attendance"
	"github.com/trezcool/diemdanh/core/student"
)

var (
	isTerminalFunc   = term.IsTerminal // mockable
	waitForLoginFunc = waitForLogin    // mockable

	errHelp     = errors.New("help provided")
	errFailures = errors.New("some students could not be marked")
)

type commandLine struct {
	svc       *attendance.Service
	validator *student.Validator
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  run -roster IDS [-online IDS] [-lesson theory|practice|review] [-name NAME] [-no-login] - mark a class present")
	_, _ = fmt.Fprintln(cli.out, "  validate -roster IDS [-online IDS] - check the student id lists")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	runCmd := flag.NewFlagSet("run", flag.ContinueOnError)
	runCmd.SetOutput(cli.out)
	runRoster := runCmd.String("roster", "", "Comma separated student ids, in processing order.")
	runOnline := runCmd.String("online", "", "Comma separated ids of the students attending online.")
	runLesson := runCmd.String("lesson", string(attendance.LessonTheory), "Lesson type: theory, practice or review.")
	runName := runCmd.String("name", "", "Class name used in the report.")
	runNoLogin := runCmd.Bool("no-login", false, "Do not wait for a manual login before running.")

	validateCmd := flag.NewFlagSet("validate", flag.ContinueOnError)
	validateCmd.SetOutput(cli.out)
	validateRoster := validateCmd.String("roster", "", "Comma separated student ids.")
	validateOnline := validateCmd.String("online", "", "Comma separated ids of the students attending online.")

	switch args[1] {
	case "run":
		if err := runCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *runRoster == "" {
			runCmd.Usage()
			return errHelp
		}
		return cli.runUnit(ctx, attendance.UpdateUnit{
			Name:   runName,
			Roster: runRoster,
			Online: runOnline,
			Lesson: runLesson,
		}, !*runNoLogin)
	case "validate":
		if err := validateCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *validateRoster == "" {
			validateCmd.Usage()
			return errHelp
		}
		return cli.validate(*validateRoster, *validateOnline)
	default:
		cli.printUsage()
		return errHelp
	}
}

func waitForLogin(r io.Reader) error {
	_, err := bufio.NewReader(r).ReadString('\n')
	if err == io.EOF {
		return nil
	}
	return err
}

func stdinIsTerminal() bool {
	return isTerminalFunc(int(os.Stdin.Fd()))
}
