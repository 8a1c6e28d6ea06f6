package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"

	"github.com/relabs-tech/jsonserver/core"
	"github.com/relabs-tech/jsonserver/core/backend"
	"github.com/relabs-tech/jsonserver/core/csql"
	"github.com/relabs-tech/jsonserver/core/document"
	"github.com/relabs-tech/jsonserver/core/logger"
	"github.com/relabs-tech/jsonserver/core/notifier"
	"github.com/relabs-tech/jsonserver/core/service"
	"github.com/relabs-tech/jsonserver/core/storage"
	"github.com/relabs-tech/jsonserver/core/watch"
)

// Service holds the environment configuration of the server. Flags take precedence.
//
// For --storage postgres use POSTGRES="host=localhost port=5432 user=postgres dbname=postgres sslmode=disable"
// and POSTGRES_PASSWORD="docker"
type Service struct {
	Port             int    `env:"PORT,default=3000" description:"the port to listen on"`
	Host             string `env:"HOST,default=localhost" description:"the host to listen on"`
	LogLevel         string `env:"LOG_LEVEL,default=info" description:"the log level, e.g. debug or warn"`
	Postgres         string `env:"POSTGRES,optional" description:"the connection string for the Postgres DB without password"`
	PostgresPassword string `env:"POSTGRES_PASSWORD,optional" description:"password to the Postgres DB"`
	PostgresSchema   string `env:"POSTGRES_SCHEMA,default=jsonserver" description:"the schema of the document table"`
	DocumentName     string `env:"DOCUMENT_NAME,default=default" description:"the name of the document row in Postgres"`
	AWSRegion        string `env:"AWS_REGION,optional" description:"the AWS region of the bucket"`
	AWSBucketName    string `env:"AWS_BUCKET_NAME,optional" description:"the bucket holding the document"`
	AWSAccessID      string `env:"AWS_ACCESS_ID,optional" description:"AWS access id, the default credential chain is used when empty"`
	AWSAccessKey     string `env:"AWS_ACCESS_KEY,optional" description:"AWS access key"`
	KafkaBrokers     string `env:"KAFKA_BROKERS,optional" description:"comma separated Kafka brokers, enables change notifications"`
	KafkaTopic       string `env:"KAFKA_TOPIC,default=jsonserver" description:"the topic for change notifications"`
	TokenSecret      string `env:"TOKEN_SECRET,optional" description:"the secret for tokens issued by the login route"`
}

// defaults fills in what envdecode leaves empty when no variable is set at all
func (s *Service) defaults() {
	if s.Port == 0 {
		s.Port = 3000
	}
	if s.Host == "" {
		s.Host = "localhost"
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.PostgresSchema == "" {
		s.PostgresSchema = "jsonserver"
	}
	if s.DocumentName == "" {
		s.DocumentName = "default"
	}
	if s.KafkaTopic == "" {
		s.KafkaTopic = "jsonserver"
	}
}

func loadService() (*Service, error) {
	service := &Service{}
	if err := envdecode.Decode(service); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, err
	}
	service.defaults()
	return service, nil
}

func main() {
	env, err := loadService()
	if err != nil {
		errorColor.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	Execute(newRootCommand(env))
}

// options are the command line options of the server
type options struct {
	port         int
	host         string
	static       []string
	auth         bool
	path         string
	returnObject bool
	tryServer    bool
	delay        string
	storage      string
	watch        bool
	accessLog    bool
	logLevel     string
}

// publicDir is always served as static directory if it exists
const publicDir = "public"

var validPath = regexp.MustCompile(`^/[a-zA-Z0-9\-/]+$`)

// normalizePath strips trailing slashes from the path prefix and validates it
func normalizePath(path string) (string, error) {
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" {
		return "", nil
	}
	if !validPath.MatchString(trimmed) {
		return "", fmt.Errorf("invalid path option %q", path)
	}
	return trimmed, nil
}

// dataFile returns the file argument, writing the sample document first for --try-server
func dataFile(o *options, args []string) (string, error) {
	if o.tryServer {
		if err := writeTryServerFile(tryServerFile); err != nil {
			return "", err
		}
		return tryServerFile, nil
	}
	if len(args) == 0 {
		return "", nil
	}
	return args[0], nil
}

// openDriver returns the storage driver selected by --storage. The returned function
// releases its resources.
func openDriver(ctx context.Context, env *Service, o *options, file string) (storage.Driver, func(), error) {
	nothing := func() {}
	switch storage.DriverType(o.storage) {
	case storage.DriverTypeLocal:
		if file == "" {
			return nil, nothing, errors.New("missing data file, pass a file or use --try-server")
		}
		if _, err := os.Stat(file); err != nil {
			return nil, nothing, fmt.Errorf("data file %s not found", file)
		}
		driver, err := storage.NewLocalFile(storage.LocalConfiguration{Path: file})
		return driver, nothing, err
	case storage.DriverTypeMemory:
		doc := document.Document{}
		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return nil, nothing, fmt.Errorf("data file %s not found", file)
			}
			if doc, err = storage.Decode(data); err != nil {
				return nil, nothing, err
			}
		}
		return storage.NewMemory(doc), nothing, nil
	case storage.DriverTypeAWSS3:
		key := file
		if key == "" {
			key = "db.json"
		}
		driver, err := storage.NewS3(ctx, storage.S3Configuration{
			AWSRegion:     env.AWSRegion,
			AWSBucketName: env.AWSBucketName,
			Key:           key,
			AccessID:      env.AWSAccessID,
			AccessKey:     env.AWSAccessKey,
		})
		return driver, nothing, err
	case storage.DriverTypePostgres:
		if env.Postgres == "" {
			return nil, nothing, errors.New("POSTGRES is not set")
		}
		dataSource := env.Postgres
		if env.PostgresPassword != "" {
			dataSource += " password=" + env.PostgresPassword
		}
		db, err := csql.OpenWithSchema(dataSource, env.PostgresSchema)
		if err != nil {
			return nil, nothing, err
		}
		driver, err := storage.NewPostgres(ctx, db, storage.PostgresConfiguration{Name: env.DocumentName})
		if err != nil {
			db.Close()
			return nil, nothing, err
		}
		return driver, func() { db.Close() }, nil
	}
	return nil, nothing, fmt.Errorf("unknown storage %q, use local, memory, s3 or postgres", o.storage)
}

// staticDirs returns ./public, if it exists, followed by the --static directories
func staticDirs(o *options) []string {
	var dirs []string
	if info, err := os.Stat(publicDir); err == nil && info.IsDir() {
		dirs = append(dirs, publicDir)
	}
	return append(dirs, o.static...)
}

// run starts the server and blocks until ctx is done
func run(ctx context.Context, env *Service, o *options, args []string) error {
	logger.InitLogger(logger.ParseLevel(o.logLevel))
	rlog := logger.FromContext(ctx)

	prefix, err := normalizePath(o.path)
	if err != nil {
		return err
	}
	delay, err := backend.ParseDelay(o.delay)
	if err != nil {
		return err
	}
	file, err := dataFile(o, args)
	if err != nil {
		return err
	}

	driver, release, err := openDriver(ctx, env, o, file)
	if err != nil {
		return err
	}
	defer release()

	var changes core.Notifier
	if env.KafkaBrokers != "" {
		kafkaNotifier, err := notifier.NewKafka(notifier.KafkaConfiguration{
			Brokers: env.KafkaBrokers,
			Topic:   env.KafkaTopic,
		})
		if err != nil {
			return err
		}
		defer kafkaNotifier.Close()
		changes = kafkaNotifier
		rlog.Infoln("publishing changes to kafka topic", env.KafkaTopic)
	}

	s, err := service.New(ctx, &service.Builder{Driver: driver, Notifier: changes})
	if err != nil {
		return err
	}

	router := mux.NewRouter()
	builder := &backend.Builder{
		Service:               s,
		Router:                router,
		Prefix:                prefix,
		ReturnObject:          o.returnObject,
		AuthenticationEnabled: o.auth,
		TokenSecret:           []byte(env.TokenSecret),
		Delay:                 delay,
		StaticDirs:            staticDirs(o),
	}
	if o.accessLog {
		builder.AccessLog = os.Stdout
	}
	b := backend.New(builder)

	addr := net.JoinHostPort(o.host, strconv.Itoa(o.port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("cannot listen on %s: %w", addr, err)
	}

	watching := storage.DriverType(o.storage) == storage.DriverTypeLocal && o.watch
	out := &banner{host: o.host, port: o.port, prefix: prefix, auth: o.auth, file: file}
	out.printStarted(watching)
	out.printEndpoints(b.Endpoints())

	if watching {
		watcher, err := watch.New(&watch.Builder{
			Path: file,
			OnChange: watch.Reloader(s, func(resources []string) {
				out.printEndpoints(b.Endpoints())
			}),
		})
		if err != nil {
			listener.Close()
			return err
		}
		defer watcher.Stop()
	}

	srv := &http.Server{Handler: router}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	rlog.Infoln("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// signalContext returns a context which is done on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
