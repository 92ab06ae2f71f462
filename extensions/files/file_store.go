package files

import (
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// FileStore is where tables are read from and written to.
type FileStore interface {
	Exists(fileName string) (bool, error)
	Open(fileName string, encoding string) (io.ReadCloser, error)
	Create(fileName string, encoding string) (io.WriteCloser, error)
}

// Binary reads and writes bytes untouched.
const Binary = "binary"

// lookupEncoding maps an encoding name to a text encoding; utf-8 strips a BOM on read.
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "binary":
		return encoding.Nop, nil
	case "", "utf-8", "utf8":
		return unicode.UTF8BOM, nil
	case "utf-16", "utf16", "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), nil
	case "latin1", "latin-1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	}
	return nil, errors.Errorf("unsupported encoding:%v", name)
}

type readCloser struct {
	io.Reader
	closer io.Closer
}

func (r *readCloser) Close() error {
	return r.closer.Close()
}

type writeCloser struct {
	io.Writer
	closers []io.Closer
}

func (w *writeCloser) Close() error {
	var first error
	for _, c := range w.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func decode(rc io.ReadCloser, enc string) (io.ReadCloser, error) {
	e, err := lookupEncoding(enc)
	if err != nil {
		rc.Close()
		return nil, err
	}
	return &readCloser{Reader: transform.NewReader(rc, e.NewDecoder()), closer: rc}, nil
}

func encode(wc io.WriteCloser, enc string) (io.WriteCloser, error) {
	e, err := lookupEncoding(enc)
	if err != nil {
		wc.Close()
		return nil, err
	}
	if e == unicode.UTF8BOM || e == encoding.Nop {
		return wc, nil
	}
	tw := transform.NewWriter(wc, e.NewEncoder())
	return &writeCloser{Writer: tw, closers: []io.Closer{tw, wc}}, nil
}

// LocalFileStore stores files under Root; relative names are joined to it.
type LocalFileStore struct {
	Root string
}

func (s *LocalFileStore) path(fileName string) string {
	if s.Root == "" || filepath.IsAbs(fileName) {
		return fileName
	}
	return filepath.Join(s.Root, fileName)
}

func (s *LocalFileStore) Exists(fileName string) (bool, error) {
	_, err := os.Stat(s.path(fileName))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *LocalFileStore) Open(fileName string, encoding string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(fileName))
	if err != nil {
		return nil, err
	}
	return decode(f, encoding)
}

func (s *LocalFileStore) Create(fileName string, encoding string) (io.WriteCloser, error) {
	p := s.path(fileName)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(p)
	if err != nil {
		return nil, err
	}
	return encode(f, encoding)
}

// FTPFileStore stores files on an FTP server. Every operation uses its own connection.
type FTPFileStore struct {
	Host     string
	Port     int
	User     string
	Password string
	Dir      string
	Timeout  time.Duration
}

func (s *FTPFileStore) connect() (*ftp.ServerConn, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	port := s.Port
	if port <= 0 {
		port = 21
	}
	conn, err := ftp.Dial(net.JoinHostPort(s.Host, strconv.Itoa(port)), ftp.DialWithTimeout(timeout))
	if err != nil {
		return nil, errors.Wrapf(err, "dial ftp server:%v", s.Host)
	}
	if err = conn.Login(s.User, s.Password); err != nil {
		conn.Quit()
		return nil, errors.Wrapf(err, "login ftp server:%v", s.Host)
	}
	return conn, nil
}

func (s *FTPFileStore) path(fileName string) string {
	if s.Dir == "" || strings.HasPrefix(fileName, "/") {
		return fileName
	}
	return path.Join(s.Dir, fileName)
}

func (s *FTPFileStore) Exists(fileName string) (bool, error) {
	conn, err := s.connect()
	if err != nil {
		return false, err
	}
	defer conn.Quit()
	if _, err = conn.FileSize(s.path(fileName)); err != nil {
		return false, nil
	}
	return true, nil
}

type ftpReader struct {
	*ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpReader) Close() error {
	err := r.Response.Close()
	if qerr := r.conn.Quit(); err == nil {
		err = qerr
	}
	return err
}

func (s *FTPFileStore) Open(fileName string, encoding string) (io.ReadCloser, error) {
	conn, err := s.connect()
	if err != nil {
		return nil, err
	}
	resp, err := conn.Retr(s.path(fileName))
	if err != nil {
		conn.Quit()
		return nil, errors.Wrapf(err, "retrieve ftp file:%v", fileName)
	}
	return decode(&ftpReader{Response: resp, conn: conn}, encoding)
}

// ftpWriter streams into STOR through a pipe; Close waits for the upload to finish.
type ftpWriter struct {
	pw   *io.PipeWriter
	conn *ftp.ServerConn
	done chan error
}

func (w *ftpWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *ftpWriter) Close() error {
	w.pw.Close()
	err := <-w.done
	if qerr := w.conn.Quit(); err == nil {
		err = qerr
	}
	return err
}

func (s *FTPFileStore) Create(fileName string, encoding string) (io.WriteCloser, error) {
	conn, err := s.connect()
	if err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	w := &ftpWriter{pw: pw, conn: conn, done: make(chan error, 1)}
	target := s.path(fileName)
	go func() {
		err := conn.Stor(target, pr)
		pr.CloseWithError(err)
		w.done <- errors.Wrapf(err, "store ftp file:%v", target)
	}()
	return encode(w, encoding)
}
