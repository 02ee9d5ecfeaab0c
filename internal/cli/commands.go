package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"go.uber.org/zap"

	"cdm/internal/webclient"
)

var errNotSignedIn = errors.New("not signed in, run `cdmctl login` first")

func (a *App) Register(ctx context.Context) error {
	email, err := a.prompt.Line("Email")
	if err != nil {
		return err
	}
	nickname, err := a.prompt.Line("Nickname")
	if err != nil {
		return err
	}
	password, err := a.prompt.Password("Password")
	if err != nil {
		return err
	}
	confirm, err := a.prompt.Password("Confirm password")
	if err != nil {
		return err
	}

	resp, err := a.auth.Register(ctx, webclient.RegisterRequest{
		Email:           email,
		Password:        password,
		ConfirmPassword: confirm,
		Nickname:        nickname,
	})
	if err != nil {
		return err
	}

	a.log.Debug("registered", zap.Uint("user_id", resp.UserID))
	fmt.Fprintf(a.out, "%s. Signed in as %s (%s).\n", resp.Message, resp.Nickname, resp.Email)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := a.prompt.Line("Email")
	if err != nil {
		return err
	}
	password, err := a.prompt.Password("Password")
	if err != nil {
		return err
	}

	resp, err := a.auth.Login(ctx, webclient.LoginRequest{Email: email, Password: password})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s. Welcome back, %s.\n", resp.Message, resp.Nickname)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if _, ok := a.state.Current(); !ok {
		fmt.Fprintln(a.out, "Not signed in.")
		return nil
	}
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	if _, ok := a.state.Current(); !ok {
		return errNotSignedIn
	}
	me, err := a.auth.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s (id %d)\n", me.Email, me.UserID)
	return nil
}

func (a *App) Profile(ctx context.Context) error {
	if _, ok := a.state.Current(); !ok {
		return errNotSignedIn
	}
	profile, err := a.profiles.GetProfile(ctx)
	if err != nil {
		return err
	}
	a.printProfile(profile)
	return nil
}

func (a *App) UpdateProfile(ctx context.Context, args []string) error {
	if _, ok := a.state.Current(); !ok {
		return errNotSignedIn
	}

	fs := flag.NewFlagSet("update-profile", flag.ContinueOnError)
	fs.SetOutput(a.out)
	username := fs.String("username", "", "new username (3-30 characters)")
	nickname := fs.String("nickname", "", "new nickname")
	preferences := fs.String("preferences", "", "preferences JSON, empty to clear")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	var req webclient.UpdateProfileRequest
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "username":
			req.Username = username
		case "nickname":
			req.Nickname = nickname
		case "preferences":
			req.Preferences = preferences
		}
	})
	if req.Username == nil && req.Nickname == nil && req.Preferences == nil {
		return fmt.Errorf("%w: nothing to update", ErrUsage)
	}

	profile, err := a.profiles.UpdateProfile(ctx, req)
	if err != nil {
		return err
	}
	a.printProfile(profile)
	return nil
}

func (a *App) CheckUsername(ctx context.Context, username string) error {
	if _, ok := a.state.Current(); !ok {
		return errNotSignedIn
	}
	available, err := a.profiles.UsernameAvailable(ctx, username)
	if err != nil {
		return err
	}
	if available {
		fmt.Fprintf(a.out, "%s is available\n", username)
	} else {
		fmt.Fprintf(a.out, "%s is taken\n", username)
	}
	return nil
}

func (a *App) Avatar(ctx context.Context, path string) error {
	if _, ok := a.state.Current(); !ok {
		return errNotSignedIn
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	url, err := a.profiles.UploadAvatar(ctx, path, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Avatar uploaded: %s\n", url)
	return nil
}

func (a *App) printProfile(p *webclient.Profile) {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%d\n", p.ID)
	fmt.Fprintf(w, "Email\t%s\n", p.Email)
	fmt.Fprintf(w, "Nickname\t%s\n", p.Nickname)
	fmt.Fprintf(w, "Username\t%s\n", orDash(p.Username))
	fmt.Fprintf(w, "Avatar\t%s\n", orDash(p.AvatarURL))
	fmt.Fprintf(w, "Preferences\t%s\n", orDash(p.Preferences))
	fmt.Fprintf(w, "Member since\t%s\n", p.CreatedAt.Format("2006-01-02"))
	_ = w.Flush()
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
