package fetcher

import (
	"context"
	"encoding/json"
	"net"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rolescout/internal/model"
)

// FTPOptions configures the FTP dump source.
type FTPOptions struct {
	// URL points at the dump directory, e.g. ftp://dumps.example.com/roles.
	URL     string
	Timeout time.Duration
}

// FTPSource implements Source against the nightly JSON dump directory. Each
// dump is a single JSON array of role records; FetchRoles retrieves the
// newest one. Detail fetches are not possible over this transport.
type FTPSource struct {
	opts FTPOptions
}

// NewFTPSource creates an FTPSource with the given options.
func NewFTPSource(opts FTPOptions) *FTPSource {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &FTPSource{opts: opts}
}

// parseFTPURL extracts host (with port) and path from an FTP URL.
func parseFTPURL(rawURL string) (host string, dir string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	dir = u.Path
	if dir == "" {
		return "", "", eris.New("empty path in ftp url")
	}

	return host, dir, nil
}

// FetchRoles connects to the dump server, finds the newest JSON dump in the
// directory, and decodes it.
func (s *FTPSource) FetchRoles(ctx context.Context) ([]model.Payload, error) {
	host, dir, err := parseFTPURL(s.opts.URL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("ftp: connecting", zap.String("host", host), zap.String("dir", dir))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(s.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "ftp dial")
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		return nil, eris.Wrap(err, "ftp login")
	}

	entries, err := conn.List(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "ftp list %s", dir)
	}

	dump := newestDump(entries)
	if dump == "" {
		return nil, eris.Errorf("no JSON dumps found in %s", dir)
	}

	resp, err := conn.Retr(path.Join(dir, dump))
	if err != nil {
		return nil, eris.Wrapf(err, "ftp retrieve %s", dump)
	}
	defer resp.Close() //nolint:errcheck

	var roles []model.Payload
	if err := json.NewDecoder(resp).Decode(&roles); err != nil {
		return nil, eris.Wrapf(err, "decode dump %s", dump)
	}

	zap.L().Info("fetched roles from FTP dump",
		zap.String("dump", dump),
		zap.Int("count", len(roles)),
	)
	return roles, nil
}

// FetchRoleDetail is not available over FTP.
func (s *FTPSource) FetchRoleDetail(ctx context.Context, externalID string) (*model.Payload, error) {
	return nil, ErrDetailUnsupported
}

// newestDump picks the most recent .json file from a directory listing,
// preferring modification time and falling back to name order, which the
// dump naming scheme (roles-YYYYMMDD.json) keeps chronological.
func newestDump(entries []*ftp.Entry) string {
	var dumps []*ftp.Entry
	for _, e := range entries {
		if e.Type == ftp.EntryTypeFile && strings.HasSuffix(e.Name, ".json") {
			dumps = append(dumps, e)
		}
	}
	if len(dumps) == 0 {
		return ""
	}
	sort.Slice(dumps, func(i, j int) bool {
		if !dumps[i].Time.Equal(dumps[j].Time) {
			return dumps[i].Time.After(dumps[j].Time)
		}
		return dumps[i].Name > dumps[j].Name
	})
	return dumps[0].Name
}
