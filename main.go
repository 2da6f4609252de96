package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aichat/auth"
	"aichat/chat"
	chatapi "aichat/chat-api"
	"aichat/db"
	"aichat/history"
	"aichat/log"
	"aichat/relay"
	"aichat/rpc"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	cli "gopkg.in/urfave/cli.v1"
)

var (
	OriginCommandHelpTemplate = `{{.Name}}{{if .Subcommands}} command{{end}}{{if .Flags}} [command options]{{end}} {{.ArgsUsage}}
{{if .Description}}{{.Description}}
{{end}}{{if .Subcommands}}
SUBCOMMANDS:
  {{range .Subcommands}}{{.Name}}{{with .ShortName}}, {{.}}{{end}}{{ "\t" }}{{.Usage}}
  {{end}}{{end}}{{if .Flags}}
OPTIONS:
{{range $.Flags}}   {{.}}
{{end}}
{{end}}`
)
var app *cli.App

var (
	configPathFlag = cli.StringFlag{
		Name:  "config",
		Usage: "config path",
		Value: "./config.yml",
	}
	logLevelFlag = cli.IntFlag{
		Name:  "log",
		Usage: "log level (0 debug, 1 info, 2 warn, 3 error)",
		Value: log.InfoLog,
	}
	logFilePath = cli.StringFlag{
		Name:  "logPath",
		Usage: "log root path",
		Value: "./logs",
	}
	envFileFlag = cli.StringFlag{
		Name:  "env",
		Usage: "dotenv file with secrets",
		Value: ".env",
	}
)

const shutdownTimeout = 10 * time.Second

func init() {
	app = cli.NewApp()
	app.Name = "aichat"
	app.Usage = "AI chat backend"
	app.Version = "v1.0.0"
	app.Commands = []cli.Command{
		commandStart,
	}

	cli.CommandHelpTemplate = OriginCommandHelpTemplate
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var commandStart = cli.Command{
	Name:  "start",
	Usage: "start the chat service",
	Flags: []cli.Flag{
		configPathFlag,
		logLevelFlag,
		logFilePath,
		envFileFlag,
	},
	Action: Start,
}

func Start(ctx *cli.Context) error {
	conf, err := setup(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()

	contx := context.Background()
	store, users, err := openStores(contx, conf)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	pool := chatapi.NewPool(conf.OpenAI)
	if pool.Len() == 0 {
		log.Warn("no openai key configured, /api/chat will fail")
	}
	var completer chat.Completer = pool
	if conf.CompletionURL != "" {
		log.Info("completions go through ", conf.CompletionURL)
		completer = relay.NewClient(conf.CompletionURL)
	}

	if conf.Host != "" {
		rpc.Host = conf.Host
	}
	svc := rpc.NewService(rpc.Options{
		Port:          conf.Port,
		SessionSecret: conf.SessionSecret,
		Store:         store,
		History:       history.NewFileStore(conf.HistoryFile),
		Users:         users,
		Orchestrator:  chat.NewOrchestrator(store, completer),
		Completion:    pool,
	})
	if err := svc.Start(contx); err != nil {
		return err
	}
	waitToExit()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return svc.Stop(stopCtx)
}

func setup(ctx *cli.Context) (AppConfig, error) {
	envFile := ctx.String(envFileFlag.Name)
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	path := ""
	if ctx.IsSet(configPathFlag.Name) {
		path = ctx.String(configPathFlag.Name)
	} else if _, err := os.Stat(configPathFlag.Value); err == nil {
		path = configPathFlag.Value
	}
	conf, err := loadConfig(path)
	if err != nil {
		return conf, err
	}
	applyEnv(&conf, os.Getenv)

	if err := log.InitLog(log.Options{
		Level:      ctx.Int(logLevelFlag.Name),
		Dir:        ctx.String(logFilePath.Name),
		MaxSize:    conf.Log.MaxSize,
		MaxAge:     conf.Log.MaxAge,
		MaxBackups: conf.Log.MaxBackups,
		Compress:   conf.Log.Compress,
	}); err != nil {
		return conf, err
	}

	if conf.SessionSecret == "" {
		log.Warn("session_secret not set, sessions will not survive a restart")
		conf.SessionSecret = uuid.NewString()
	}
	return conf, nil
}

// openStores opens the conversation store and the user provider. A SQL
// conversation store on the same database as the users shares one
// connection.
func openStores(ctx context.Context, conf AppConfig) (db.Store, auth.Provider, error) {
	usersType := conf.Users.Type
	if usersType == "" {
		usersType = db.TypeSQLite
	}
	gdb, err := db.OpenSQL(usersType, conf.Users.DSN)
	if err != nil {
		return nil, nil, err
	}
	users, err := auth.NewSQLProvider(gdb)
	if err != nil {
		return nil, nil, err
	}

	if conf.Store.Type == usersType && conf.Store.DSN == conf.Users.DSN {
		store, err := db.NewSQLStore(gdb)
		if err != nil {
			return nil, nil, err
		}
		return store, users, nil
	}
	store, err := db.Open(ctx, conf.Store)
	if err != nil {
		return nil, nil, err
	}
	log.Info("conversation store: ", conf.Store.Type)
	return store, users, nil
}

func waitToExit() {
	exit := make(chan bool, 0)
	sc := make(chan os.Signal, 1)
	if !signal.Ignored(syscall.SIGHUP) {
		signal.Notify(sc, syscall.SIGHUP)
	}
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for sig := range sc {
			log.Info("received exit signal: ", sig.String())
			close(exit)
			break
		}
	}()
	<-exit
}
