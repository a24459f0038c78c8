package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"

	"github.com/BaSui01/envsync/internal/envfile"
)

// =============================================================================
// 📄 envfile 命令：离线维护引导文件，不连接存储
// =============================================================================

// errInvalidFile 校验发现非法行
var errInvalidFile = errors.New("env file has invalid lines")

func runEnvFile(args []string, out io.Writer) error {
	if len(args) < 1 || isHelp(args[0]) {
		printEnvFileUsage(out)
		if len(args) < 1 {
			return errUsage
		}
		return nil
	}

	files := envfile.New(nil)
	sub, rest := args[0], args[1:]

	fs := flag.NewFlagSet("envfile "+sub, flag.ContinueOnError)
	fs.SetOutput(out)
	path := fs.String("path", ".env", "Bootstrap file path")
	overwrite := fs.Bool("overwrite", false, "merge: values from the source file win")

	switch sub {
	case "validate":
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return envFileValidate(files, *path, out)
	case "backups":
		if err := fs.Parse(rest); err != nil {
			return err
		}
		backups, err := files.ListBackups(*path)
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			fmt.Fprintln(out, "No backups found.")
			return nil
		}
		for _, b := range backups {
			fmt.Fprintln(out, b)
		}
		return nil
	case "restore":
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return fmt.Errorf("restore: expected exactly one backup argument")
		}
		return envFileRestore(files, fs.Arg(0), *path, out)
	case "merge":
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return fmt.Errorf("merge: expected exactly one source file argument")
		}
		merged, err := files.Merge(fs.Arg(0), *path, *overwrite)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Merged %d variable(s) into %s.\n", len(merged), *path)
		return nil
	default:
		printEnvFileUsage(out)
		return fmt.Errorf("unknown envfile subcommand: %s", sub)
	}
}

func envFileValidate(files *envfile.Files, path string, out io.Writer) error {
	errs, err := files.Validate(path)
	if err != nil {
		return err
	}
	if len(errs) == 0 {
		fmt.Fprintf(out, "%s: OK\n", path)
		return nil
	}
	for _, e := range errs {
		fmt.Fprintf(out, "%s:%d: %s\n", path, e.Line, e.Message)
	}
	return fmt.Errorf("%w: %d", errInvalidFile, len(errs))
}

// envFileRestore 只接受 path 自己的备份，按完整路径或文件名匹配
func envFileRestore(files *envfile.Files, backup, path string, out io.Writer) error {
	backups, err := files.ListBackups(path)
	if err != nil {
		return err
	}
	chosen := ""
	for _, b := range backups {
		if b == backup || filepath.Base(b) == backup {
			chosen = b
			break
		}
	}
	if chosen == "" {
		return fmt.Errorf("%w: %s", envfile.ErrBackupNotFound, backup)
	}

	safety, err := files.Restore(chosen, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Restored %s from %s.\n", path, chosen)
	if safety != "" {
		fmt.Fprintf(out, "Previous content saved to %s.\n", safety)
	}
	return nil
}

func printEnvFileUsage(out io.Writer) {
	fmt.Fprint(out, `Bootstrap File Commands

Usage:
  envsync envfile <subcommand> [--path .env] [args]

Subcommands:
  validate            Check every line for syntax and key errors
  backups             List backups of the file, newest first
  restore <backup>    Restore the file from one of its backups
  merge <source>      Merge another file into the target (--overwrite lets source win)

Examples:
  envsync envfile validate --path /etc/envsync/.env
  envsync envfile restore .env.backup.20240102030405
  envsync envfile merge --overwrite shared.env
`)
}
