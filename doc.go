// Package sftpfixture runs an in-memory SFTP server while your tests
// are running, so code that talks to an SFTP server can be tested with
// a real client and a real protocol exchange, without touching the
// host filesystem or an external process.
//
// # Overview
//
// The fixture consists of:
//   - an SSH listener on a loopback port with a throwaway host key,
//     serving only the sftp subsystem
//   - an in-memory virtual filesystem shared by all client sessions of
//     one fixture instance
//   - password authentication that accepts everything until users are
//     registered
//   - convenience operations for seeding and inspecting the filesystem
//     without going through the protocol
//
// # Block-scoped usage
//
// Wrap the test code with WithServer. The server starts before the
// callback runs and is torn down afterwards, on success and on error:
//
//	func TestDownload(t *testing.T) {
//	    err := sftpfixture.WithServer(func(server *sftpfixture.Server) error {
//	        if err := server.PutFileString("/directory/file.txt", "content of file", nil); err != nil {
//	            return err
//	        }
//	        addr, _ := server.Addr()
//	        return downloadAndVerify(addr) // code under test
//	    })
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	}
//
// The *Server passed to the callback becomes unusable the moment the
// callback returns: every later operation fails with a *StateError.
// This deliberately breaks tests that capture the reference and assert
// on it after the server is gone.
//
// # Manual lifecycle
//
// Where a single callback is impractical, New gives the same server
// with explicit teardown:
//
//	server, err := sftpfixture.New(sftpfixture.WithUser("user", "secret"))
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer server.Close()
//
// # Connecting
//
// Clients authenticate with username/password over SSH. The host key
// is freshly generated for every start and never persisted, so clients
// must skip host key verification (for x/crypto/ssh that is
// ssh.InsecureIgnoreHostKey).
//
// # Ports
//
// By default the server listens on an OS-assigned ephemeral port,
// readable via Port. SetPort moves the server to a fixed port by
// restarting the listener; the filesystem and registered users
// survive the restart, open client sessions do not.
package sftpfixture
