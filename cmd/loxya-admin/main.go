// loxya-admin performs offline account and key maintenance against a Loxya
// database. It must run with the same pepper file as the service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/loxya/loxya/internal/auth/domain"
	"github.com/loxya/loxya/internal/auth/service"
	"github.com/loxya/loxya/internal/auth/store/drivers/sqlite"
	"github.com/loxya/loxya/pkg/cryptox"
	"github.com/loxya/loxya/pkg/jwtx"
)

const generatedPasswordLength = 20

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return errors.New("missing command")
	}

	switch args[0] {
	case "create-user":
		return runCreateUser(args[1:], out)
	case "gen-secret":
		return runGenSecret(args[1:], out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runCreateUser(args []string, out io.Writer) error {
	var dbFile, pepperFile, pseudo, email, password, group string

	flagSet := pflag.NewFlagSet("create-user", pflag.ContinueOnError)
	flagSet.StringVar(&dbFile, "db", envOr("LOXYA_DATABASE_FILE", "loxya.db"), "path to the SQLite database")
	flagSet.StringVar(&pepperFile, "pepper", envOr("LOXYA_PEPPER_FILE", "pepper"), "path to the password pepper file")
	flagSet.StringVar(&pseudo, "pseudo", "", "login name (required)")
	flagSet.StringVar(&email, "email", "", "email address (required)")
	flagSet.StringVar(&password, "password", "", "password (generated and printed when empty)")
	flagSet.StringVar(&group, "group", string(domain.GroupMember), "group: admin, member or readonly")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if pseudo == "" || email == "" {
		return errors.New("--pseudo and --email are required")
	}

	generated := password == ""
	if generated {
		var err error
		password, err = cryptox.GeneratePassword(generatedPasswordLength)
		if err != nil {
			return err
		}
	}

	pepper, err := cryptox.LoadOrCreatePepper(pepperFile)
	if err != nil {
		return fmt.Errorf("load pepper: %w", err)
	}

	st, err := sqlite.NewStore(fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dbFile))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = st.Close() }()

	if err := st.ApplyMigrations(); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	users := &service.UserService{
		Store:     st,
		Passwords: cryptox.NewPasswordHasher(pepper),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	id, err := users.CreateUser(ctx, pseudo, email, password, domain.Group(group))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "created user %d (%s, %s)\n", id, pseudo, group)
	if generated {
		fmt.Fprintf(out, "password: %s\n", password)
	}
	return nil
}

func runGenSecret(args []string, out io.Writer) error {
	var size int

	flagSet := pflag.NewFlagSet("gen-secret", pflag.ContinueOnError)
	flagSet.IntVar(&size, "bytes", 48, "number of random bytes")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if size < jwtx.MinSecretLength {
		return fmt.Errorf("--bytes must be at least %d", jwtx.MinSecretLength)
	}

	secret, err := cryptox.GenerateToken(size)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, secret)
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: loxya-admin <command> [flags]

Commands:
  create-user   add an account (--pseudo, --email, --password, --group)
  gen-secret    print a random value for LOXYA_JWT_SECRET
`)
}
