package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/learnlink-client/alerts"
	"github.com/jrsteele09/learnlink-client/app"
	"github.com/jrsteele09/learnlink-client/auth"
	"github.com/jrsteele09/learnlink-client/client"
	"github.com/jrsteele09/learnlink-client/hub"
	"github.com/jrsteele09/learnlink-client/hub/relay"
	apperrors "github.com/jrsteele09/learnlink-client/internal/errors"
	"github.com/jrsteele09/learnlink-client/locale"
	"github.com/jrsteele09/learnlink-client/metrics"
	"github.com/jrsteele09/learnlink-client/missions"
	"github.com/jrsteele09/learnlink-client/pagination"
	"github.com/jrsteele09/learnlink-client/points"
	"github.com/jrsteele09/learnlink-client/shop"
	"github.com/jrsteele09/learnlink-client/submissions"
	"github.com/jrsteele09/learnlink-client/users"
)

type command struct {
	summary string
	// authed commands run only once the session guard is ready
	authed bool
	roles  []users.RoleType
	banner bool
	run    func(ctx context.Context, a *app.App, args []string) error
}

var commands = map[string]command{
	"login":          {summary: "sign in with email and password", banner: true, run: runLogin},
	"login-google":   {summary: "sign in with a Google account", banner: true, run: runLoginGoogle},
	"register":       {summary: "create a parent account", banner: true, run: runRegister},
	"register-child": {summary: "create a child account", authed: true, roles: []users.RoleType{users.RoleParent}, run: runRegisterChild},
	"logout":         {summary: "sign out and forget the refresh cookie", run: runLogout},
	"whoami":         {summary: "show the signed in user", authed: true, run: runWhoami},
	"missions":       {summary: "list missions", authed: true, run: runMissions},
	"mission-start":  {summary: "start an assigned mission", authed: true, roles: []users.RoleType{users.RoleChild}, run: runMissionStart},
	"submit":         {summary: "submit proof for a mission", authed: true, roles: []users.RoleType{users.RoleChild}, run: runSubmit},
	"review":         {summary: "approve or reject a submission", authed: true, roles: []users.RoleType{users.RoleParent}, run: runReview},
	"shop":           {summary: "list shops, or the products of one shop", authed: true, run: runShop},
	"redeem":         {summary: "redeem points for a product", authed: true, roles: []users.RoleType{users.RoleChild}, run: runRedeem},
	"points":         {summary: "show a point balance and history", authed: true, run: runPoints},
	"notifications":  {summary: "list or mark notifications", authed: true, run: runNotifications},
	"watch":          {summary: "stream mission events from the hub", authed: true, banner: true, run: runWatch},
	"locale":         {summary: "show or set the language (en, vi)", run: runLocale},
}

// check applies the route guard for authed commands
func (c command) check(a *app.App) error {
	if !c.authed {
		return nil
	}
	d := a.Guard(c.roles...).Check()
	switch {
	case d.Ready:
		return nil
	case d.Redirect == a.Config().GetLoginPath():
		return fmt.Errorf("%w: run `learnlink login` first", apperrors.ErrNotAuthenticated)
	default:
		names := make([]string, 0, len(c.roles))
		for _, r := range c.roles {
			names = append(names, strings.ToLower(r.String()))
		}
		return fmt.Errorf("%w: this command is for %s accounts", apperrors.ErrForbidden, strings.Join(names, " or "))
	}
}

func usage(out io.Writer) {
	fmt.Fprintln(out, "usage: learnlink <command> [flags]")
	fmt.Fprintln(out)
	for _, name := range sortedKeys(commands) {
		fmt.Fprintf(out, "  %s %s\n", colorize(Cyan, fmt.Sprintf("%-15s", name)), commands[name].summary)
	}
}

func newFlags(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

// secret prefers the flag, then the environment
func secret(value, env string) string {
	if value != "" {
		return value
	}
	return os.Getenv(env)
}

func runLogin(ctx context.Context, a *app.App, args []string) error {
	fs := newFlags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password (or LEARNLINK_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	req := auth.LoginRequest{Email: *email, Password: secret(*password, "LEARNLINK_PASSWORD")}
	if err := a.Sessions.Login(ctx, req); err != nil {
		return err
	}
	u := a.Sessions.User()
	a.Alerts.Success(fmt.Sprintf("Signed in as %s (%s)", u.Name, u.Role))
	return nil
}

func runLoginGoogle(ctx context.Context, a *app.App, args []string) error {
	if err := a.SignInWithGoogle(ctx); err != nil {
		return err
	}
	a.Alerts.Success(fmt.Sprintf("Signed in as %s", a.Sessions.User().Email))
	return nil
}

func runRegister(ctx context.Context, a *app.App, args []string) error {
	fs := newFlags("register")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password (or LEARNLINK_PASSWORD)")
	confirm := fs.String("confirm", "", "password again (defaults to -password)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pw := secret(*password, "LEARNLINK_PASSWORD")
	req := auth.RegisterRequest{Name: *name, Email: *email, Password: pw, ConfirmPassword: *confirm}
	if req.ConfirmPassword == "" {
		req.ConfirmPassword = pw
	}
	if err := a.Sessions.Register(ctx, req); err != nil {
		return err
	}
	if a.Sessions.State().Authenticated() {
		a.Alerts.Success("Account created, you are signed in")
	} else {
		a.Alerts.Success("Account created, sign in to continue")
	}
	return nil
}

func runRegisterChild(ctx context.Context, a *app.App, args []string) error {
	fs := newFlags("register-child")
	name := fs.String("name", "", "child's name")
	email := fs.String("email", "", "child's login email")
	password := fs.String("password", "", "child's password (or LEARNLINK_CHILD_PASSWORD)")
	age := fs.Int("age", 0, "child's age")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pw := secret(*password, "LEARNLINK_CHILD_PASSWORD")
	child, err := a.Sessions.RegisterChild(ctx, auth.RegisterChildRequest{
		Name:            *name,
		Email:           *email,
		Password:        pw,
		ConfirmPassword: pw,
		Age:             *age,
	})
	if err != nil {
		return err
	}
	a.Alerts.Success(fmt.Sprintf("Created account for %s (%s)", child.Name, child.Email))
	return nil
}

func runLogout(ctx context.Context, a *app.App, args []string) error {
	a.Sessions.Logout(ctx)
	a.Alerts.Info("Signed out")
	return nil
}

func runWhoami(ctx context.Context, a *app.App, args []string) error {
	profile, err := a.Family.Profile(ctx)
	if err != nil {
		return err
	}
	t := newTable(os.Stdout, "id", "name", "email", "role", "since")
	t.row(profile.ID, profile.Name, profile.Email, profile.Role.String(), formatDate(profile.CreatedAt))
	t.flush()

	if !a.Sessions.User().IsParent() {
		return nil
	}
	children, err := a.Family.Children(ctx)
	if err != nil {
		return err
	}
	fmt.Println()
	t = newTable(os.Stdout, "child", "name", "points", "active", "completed")
	for _, c := range children {
		t.row(c.ID, c.Name, strconv.Itoa(c.Points), strconv.Itoa(c.ActiveMissions), strconv.Itoa(c.CompletedMissions))
	}
	t.flush()
	return nil
}

func runMissions(ctx context.Context, a *app.App, args []string) error {
	fs := newFlags("missions")
	status := fs.String("status", "", "Assigned, Processing, Submitted or Completed")
	child := fs.String("child", "", "only this child's missions (parents)")
	search := fs.String("search", "", "title contains")
	page := fs.Int("page", 1, "page number")
	size := fs.Int("size", pagination.DefaultSize, "page size")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var filter missions.Filter
	if *status != "" {
		s, err := missions.ParseStatus(*status)
		if err != nil {
			return err
		}
		filter.Status = s
	}
	filter.ChildID, filter.Search = *child, *search

	now := time.Now()
	if a.Sessions.User().IsChild() {
		list, err := a.Missions.ListForChild(ctx, filter.Status)
		if err != nil {
			return err
		}
		printMissions(list, now)
		return nil
	}

	result, err := a.Missions.List(ctx, filter, pagination.Page{Number: *page, Size: *size})
	if err != nil {
		return err
	}
	printMissions(result.Items, now)
	pageFooter(os.Stdout, result)
	return nil
}

func printMissions(list []missions.Mission, now time.Time) {
	t := newTable(os.Stdout, "id", "title", "child", "points", "deadline", "status")
	for _, m := range list {
		deadline := formatDate(m.Deadline)
		if m.Overdue(now) {
			deadline = colorize(Red, deadline)
		}
		t.row(m.ID, m.Title, orDash(m.ChildName), strconv.Itoa(m.Points), deadline, badgeText(m.Status.Badge()))
	}
	t.flush()
}

func runMissionStart(ctx context.Context, a *app.App, args []string) error {
	fs := newFlags("mission-start")
	id := fs.String("id", "", "mission id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	m, err := a.Missions.Get(ctx, *id)
	if err != nil {
		return err
	}
	started, err := a.Missions.Start(ctx, *m)
	if err != nil {
		return err
	}
	a.Alerts.Success(fmt.Sprintf("Started %q", started.Title))
	return nil
}

func runSubmit(ctx context.Context, a *app.App, args []string) error {
	fs := newFlags("submit")
	missionID := fs.String("mission", "", "mission id")
	note := fs.String("note", "", "message for your parent")
	path := fs.String("file", "", "photo or document as proof")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := submissions.SubmitRequest{MissionID: *missionID, Note: *note}
	if *path != "" {
		f, err := os.Open(*path)
		if err != nil {
			return err
		}
		defer f.Close()
		req.File = &client.File{
			Name:        filepath.Base(*path),
			ContentType: mime.TypeByExtension(filepath.Ext(*path)),
			Content:     f,
		}
	}
	sub, err := a.Submissions.Submit(ctx, req)
	if err != nil {
		return err
	}
	a.Alerts.Success(fmt.Sprintf("Submitted, waiting for review (%s)", sub.ID))
	return nil
}

func runReview(ctx context.Context, a *app.App, args []string) error {
	fs := newFlags("review")
	id := fs.String("submission", "", "submission id; omit to list pending submissions")
	approve := fs.Bool("approve", false, "approve the submission")
	reject := fs.Bool("reject", false, "send the mission back")
	score := fs.Int("score", -1, fmt.Sprintf("score 0-%d, required to approve", submissions.MaxScore))
	feedback := fs.String("feedback", "", "feedback for the child, required to reject")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *id == "" {
		pending, err := a.Submissions.ListPending(ctx)
		if err != nil {
			return err
		}
		t := newTable(os.Stdout, "id", "mission", "child", "submitted", "note")
		for _, s := range pending {
			t.row(s.ID, orDash(s.MissionTitle), orDash(s.ChildName), formatDate(s.SubmittedAt), orDash(s.Note))
		}
		t.flush()
		return nil
	}
	if *approve == *reject {
		return errors.New("pass exactly one of -approve or -reject")
	}

	sub, err := a.Submissions.Get(ctx, *id)
	if err != nil {
		return err
	}
	req := submissions.Reject(*feedback)
	if *approve {
		req = submissions.Approve(*score, *feedback)
	}
	reviewed, err := a.Submissions.Review(ctx, sub.ID, sub.Status, req)
	if err != nil {
		return err
	}
	a.Alerts.Success(fmt.Sprintf("Submission %s", strings.ToLower(string(reviewed.Status))))
	return nil
}

func runShop(ctx context.Context, a *app.App, args []string) error {
	fs := newFlags("shop")
	shopID := fs.String("shop", "", "list this shop's products")
	page := fs.Int("page", 1, "page number")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *shopID == "" {
		shops, err := a.Shop.ListShops(ctx)
		if err != nil {
			return err
		}
		t := newTable(os.Stdout, "id", "name", "description", "open")
		for _, s := range shops {
			t.row(s.ID, s.Name, orDash(s.Description), strconv.FormatBool(s.IsActive))
		}
		t.flush()
		return nil
	}

	products, err := a.Shop.ListProducts(ctx, *shopID, pagination.Page{Number: *page})
	if err != nil {
		return err
	}
	t := newTable(os.Stdout, "id", "name", "price", "stock")
	for _, p := range products.Items {
		stock := strconv.Itoa(p.Stock)
		if p.Stock == 0 {
			stock = colorize(Gray, "sold out")
		}
		t.row(p.ID, p.Name, strconv.Itoa(p.Price), stock)
	}
	t.flush()
	pageFooter(os.Stdout, products)
	return nil
}

func runRedeem(ctx context.Context, a *app.App, args []string) error {
	fs := newFlags("redeem")
	productID := fs.String("product", "", "product id; omit to list your redemptions")
	quantity := fs.Int("qty", 1, "quantity")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *productID == "" {
		list, err := a.Shop.MyRedemptions(ctx)
		if err != nil {
			return err
		}
		t := newTable(os.Stdout, "id", "product", "qty", "points", "date", "status")
		for _, r := range list {
			t.row(r.ID, orDash(r.ProductName), strconv.Itoa(r.Quantity), strconv.Itoa(r.TotalPoints), formatDate(r.CreatedAt), badgeText(r.Status.Badge()))
		}
		t.flush()
		return nil
	}

	product, err := a.Shop.GetProduct(ctx, *productID)
	if err != nil {
		return err
	}
	balance, err := a.Points.Balance(ctx)
	if err != nil {
		return err
	}
	if err := product.CheckRedeem(*quantity, balance.Balance); err != nil {
		return err
	}
	r, err := a.Shop.Redeem(ctx, shop.RedeemRequest{ProductID: product.ID, Quantity: *quantity})
	if err != nil {
		return err
	}
	a.Alerts.Success(fmt.Sprintf("Redeemed %d x %s for %d points", r.Quantity, product.Name, r.TotalPoints))
	return nil
}

func runPoints(ctx context.Context, a *app.App, args []string) error {
	fs := newFlags("points")
	childID := fs.String("child", "", "child id (parents)")
	history := fs.Bool("history", false, "show transactions")
	page := fs.Int("page", 1, "history page")
	if err := fs.Parse(args); err != nil {
		return err
	}

	get := a.Points.Balance
	if *childID != "" {
		get = func(ctx context.Context) (*points.Balance, error) { return a.Points.ChildBalance(ctx, *childID) }
	}
	balance, err := get(ctx)
	if err != nil {
		return err
	}
	t := newTable(os.Stdout, "balance", "earned", "spent")
	t.row(colorize(Green, strconv.Itoa(balance.Balance)), strconv.Itoa(balance.TotalEarned), strconv.Itoa(balance.TotalSpent))
	t.flush()

	if !*history {
		return nil
	}
	result, err := a.Points.History(ctx, *childID, pagination.Page{Number: *page})
	if err != nil {
		return err
	}
	fmt.Println()
	t = newTable(os.Stdout, "date", "type", "amount", "reason")
	for _, tx := range result.Items {
		amount := fmt.Sprintf("%+d", tx.Signed())
		color := Green
		if tx.Signed() < 0 {
			color = Red
		}
		t.row(formatDate(tx.CreatedAt), string(tx.Type), colorize(color, amount), orDash(tx.Reason))
	}
	t.flush()
	pageFooter(os.Stdout, result)
	return nil
}

func runNotifications(ctx context.Context, a *app.App, args []string) error {
	fs := newFlags("notifications")
	unread := fs.Bool("unread", false, "only unread")
	read := fs.String("read", "", "mark this notification read")
	readAll := fs.Bool("read-all", false, "mark everything read")
	page := fs.Int("page", 1, "page number")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *read != "":
		if err := a.Notifications.MarkRead(ctx, *read); err != nil {
			return err
		}
		a.Alerts.Success("Marked as read")
		return nil
	case *readAll:
		if err := a.Notifications.MarkAllRead(ctx); err != nil {
			return err
		}
		a.Alerts.Success("All notifications marked as read")
		return nil
	}

	count, err := a.Notifications.UnreadCount(ctx)
	if err != nil {
		return err
	}
	result, err := a.Notifications.List(ctx, *unread, pagination.Page{Number: *page})
	if err != nil {
		return err
	}
	fmt.Printf("%s unread\n\n", colorize(Blue, strconv.Itoa(count)))
	t := newTable(os.Stdout, "id", "date", "title", "message")
	for _, n := range result.Items {
		title := n.Title
		if !n.IsRead {
			title = colorize(Magenta, title)
		}
		t.row(n.ID, formatDate(n.CreatedAt), title, n.Message)
	}
	t.flush()
	pageFooter(os.Stdout, result)
	return nil
}

func runWatch(ctx context.Context, a *app.App, args []string) error {
	fs := newFlags("watch")
	natsURL := fs.String("nats", a.Config().GetNatsURL(), "relay events to this NATS server")
	metricsAddr := fs.String("metrics", "", "serve Prometheus metrics on this address, e.g. :9100")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *natsURL != "" {
		r, closeRelay, err := relay.Connect(*natsURL,
			relay.WithSubjectPrefix(a.Config().GetNatsSubjectPrefix()),
			relay.WithSource(a.Sessions.User().ID),
		)
		if err != nil {
			return err
		}
		defer closeRelay()
		defer r.Attach(a.Hub)()
		a.Alerts.Info(fmt.Sprintf("Relaying events to %s", r.Subject("*")))
	}

	if *metricsAddr != "" {
		server := &http.Server{Addr: *metricsAddr, Handler: metrics.Handler(a.Registry())}
		go listenAndServe(server)
		defer shutdown(server)
	}

	defer a.Hub.OnMission(func(event string, ev hub.MissionEvent) {
		fmt.Printf("%s %s %s\n", colorize(Gray, time.Now().Format("15:04:05")), eventBadge(event, ev), ev.Summary(event))
	})()

	a.Alerts.Info("Watching for mission events, press Ctrl+C to stop")
	return a.Hub.Run(ctx)
}

func eventBadge(event string, ev hub.MissionEvent) string {
	if ev.Status.Valid() {
		return badgeText(ev.Status.Badge())
	}
	return badgeText(alerts.Badge{Label: event, Level: alerts.LevelInfo})
}

func runLocale(ctx context.Context, a *app.App, args []string) error {
	if len(args) == 0 {
		codes := make([]string, 0, len(locale.Supported()))
		for _, c := range locale.Supported() {
			codes = append(codes, string(c))
		}
		fmt.Printf("%s (supported: %s)\n", a.Locale.Code(), strings.Join(codes, ", "))
		return nil
	}
	code := a.SetLocale(locale.Code(args[0]))
	a.Alerts.Success(fmt.Sprintf("Language set to %s", code))
	return nil
}

func listenAndServe(server *http.Server) {
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "metrics server: %s\n", err)
	}
}

func shutdown(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)
}
