// log-seeder appends realistic fake log lines to SSH and web-server log
// files so the pipeline can be exercised without real traffic. A fraction of
// the generated web requests carry attack payloads.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// Paths must stay space-free so they survive the combined-log request field.
var attackPayloads = []string{
	"/products?id=1'or'1'='1",
	"/search?q=<script>alert(1)</script>",
	"/static/../../../etc/passwd",
	"/index.php?page=;cat%20/etc/shadow",
	"/uploads/c99.php?cmd=ls",
	"/.env",
	"/wp-admin/setup-config.php",
	"/cgi-bin/test.cgi?x=|nc%20-e%20/bin/sh",
}

var benignPaths = []string{
	"/", "/index.html", "/about", "/products", "/products/42",
	"/api/items", "/api/items/7", "/static/app.js", "/static/style.css",
	"/images/logo.png", "/login", "/contact",
}

var sshUsers = []string{"root", "admin", "deploy", "ubuntu", "git", "postgres", "test"}

func main() {
	dir := flag.String("dir", "./logs", "directory for generated log files")
	interval := flag.Duration("interval", 500*time.Millisecond, "delay between lines")
	count := flag.Int("count", 0, "number of lines to write per file (0 = run until interrupted)")
	attackRatio := flag.Float64("attack-ratio", 0.1, "fraction of web requests carrying attack payloads")
	bruteForce := flag.Bool("brute-force", false, "include an SSH brute-force burst at startup")
	flag.Parse()

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		log.Fatalf("failed to create log directory: %v", err)
	}

	authPath := filepath.Join(*dir, "auth.log")
	accessPath := filepath.Join(*dir, "access.log")
	errorPath := filepath.Join(*dir, "error.log")

	log.Printf("seeding logs under %s (attack ratio %.0f%%)", *dir, *attackRatio*100)

	if *bruteForce {
		ip := gofakeit.IPv4Address()
		for i := 0; i < 8; i++ {
			appendLine(authPath, sshFailedLine(ip, sshUsers[i%len(sshUsers)]))
		}
		log.Printf("wrote brute-force burst from %s", ip)
	}

	written := 0
	for *count == 0 || written < *count {
		appendLine(authPath, sshLine())
		appendLine(accessPath, accessLine(*attackRatio))
		if rand.Float64() < 0.2 {
			appendLine(errorPath, errorLine())
		}

		written++
		time.Sleep(*interval)
	}
}

func appendLine(path, line string) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, line); err != nil {
		log.Fatalf("failed to write %s: %v", path, err)
	}
}

func syslogTime() string {
	return time.Now().Format("Jan  2 15:04:05")
}

func sshLine() string {
	if rand.Float64() < 0.4 {
		return sshFailedLine(gofakeit.IPv4Address(), gofakeit.RandomString(sshUsers))
	}

	user := gofakeit.RandomString(sshUsers)
	ip := gofakeit.IPv4Address()
	port := gofakeit.Number(1024, 65535)
	pid := gofakeit.Number(1000, 99999)

	switch rand.Intn(3) {
	case 0:
		return fmt.Sprintf("%s webserver sshd[%d]: Accepted publickey for %s from %s port %d ssh2",
			syslogTime(), pid, user, ip, port)
	case 1:
		return fmt.Sprintf("%s webserver sshd[%d]: Disconnected from %s port %d",
			syslogTime(), pid, ip, port)
	default:
		return fmt.Sprintf("%s webserver sshd[%d]: pam_unix(sshd:session): session opened for user %s by (uid=0)",
			syslogTime(), pid, user)
	}
}

func sshFailedLine(ip, user string) string {
	pid := gofakeit.Number(1000, 99999)
	port := gofakeit.Number(1024, 65535)
	if rand.Float64() < 0.3 {
		return fmt.Sprintf("%s webserver sshd[%d]: Invalid user %s from %s port %d",
			syslogTime(), pid, user, ip, port)
	}
	return fmt.Sprintf("%s webserver sshd[%d]: Failed password for %s from %s port %d ssh2",
		syslogTime(), pid, user, ip, port)
}

func accessLine(attackRatio float64) string {
	path := gofakeit.RandomString(benignPaths)
	status := 200
	if rand.Float64() < attackRatio {
		path = attackPayloads[rand.Intn(len(attackPayloads))]
		status = gofakeit.RandomInt([]int{403, 404, 500})
	} else if rand.Float64() < 0.1 {
		status = gofakeit.RandomInt([]int{301, 304, 404})
	}

	return fmt.Sprintf(`%s - - [%s] "GET %s HTTP/1.1" %d %d "%s" "%s"`,
		gofakeit.IPv4Address(),
		time.Now().Format("02/Jan/2006:15:04:05 -0700"),
		path,
		status,
		gofakeit.Number(100, 50000),
		gofakeit.URL(),
		gofakeit.UserAgent(),
	)
}

func errorLine() string {
	return fmt.Sprintf(`%s [error] %d#%d: *%d open() "%s" failed (2: No such file or directory), client: %s, server: %s`,
		time.Now().Format("2006/01/02 15:04:05"),
		gofakeit.Number(1000, 9999),
		gofakeit.Number(0, 16),
		gofakeit.Number(1, 100000),
		"/var/www/html"+gofakeit.RandomString(benignPaths),
		gofakeit.IPv4Address(),
		gofakeit.DomainName(),
	)
}
