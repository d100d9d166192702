package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/btcsuite/btcd/txscript"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Jayson-Furr/UTXOTools/pkg/analyzer"
	"github.com/Jayson-Furr/UTXOTools/pkg/snapshot"
	"github.com/Jayson-Furr/UTXOTools/pkg/types"
)

// maxUploadBytes bounds the snapshot prefix a client may post for
// inspection.
const maxUploadBytes = 32 << 20

// maxInspectEntries bounds how many decoded outputs one request returns.
const maxInspectEntries = 10_000

var logger *zap.Logger

func main() {
	var err error
	logger, err = zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Get port from environment or default to 3000
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// Enable CORS for browser frontends
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
	}))

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	// Parse just the 51-byte header from an uploaded snapshot prefix
	r.POST("/api/header", handleHeader)

	// Decode header plus the first entries of an uploaded snapshot
	r.POST("/api/inspect", handleInspect)

	r.GET("/", func(c *gin.Context) {
		c.Data(200, "text/html", []byte(indexHTML))
	})

	logger.Info("listening", zap.String("port", port))
	fmt.Printf("http://127.0.0.1:%s\n", port)
	if err := r.Run(":" + port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func errorResponse(c *gin.Context, status int, code string, err error) {
	c.JSON(status, gin.H{
		"ok":    false,
		"error": types.ErrorInfo{Code: code, Message: err.Error()},
	})
}

func readBody(c *gin.Context) ([]byte, error) {
	return io.ReadAll(io.LimitReader(c.Request.Body, maxUploadBytes))
}

func handleHeader(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		errorResponse(c, 400, "INVALID_REQUEST", err)
		return
	}

	h, err := snapshot.NewReader(bytes.NewReader(body)).ReadHeader()
	if err != nil {
		errorResponse(c, 422, parseErrorCode(err), err)
		return
	}
	c.JSON(200, gin.H{"ok": true, "header": h.Info()})
}

func handleInspect(c *gin.Context) {
	limit := 100
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxInspectEntries {
			errorResponse(c, 400, "INVALID_REQUEST", fmt.Errorf("limit must be in [1, %d]", maxInspectEntries))
			return
		}
		limit = n
	}

	body, err := readBody(c)
	if err != nil {
		errorResponse(c, 400, "INVALID_REQUEST", err)
		return
	}

	r := snapshot.NewReader(bytes.NewReader(body))
	h, err := r.ReadHeader()
	if err != nil {
		errorResponse(c, 422, parseErrorCode(err), err)
		return
	}

	stats := analyzer.NewStats()
	entries := make([]types.UTXOInfo, 0, limit)
	truncated := false
	for {
		u, err := r.NextEntry()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A prefix upload usually ends mid-record; report what decoded.
			truncated = true
			break
		}
		stats.Add(u)
		if len(entries) < limit {
			info := u.Info()
			info.ScriptType = txscript.GetScriptClass(u.Script).String()
			if asm, err := txscript.DisasmString(u.Script); err == nil {
				info.ScriptAsm = asm
			}
			entries = append(entries, info)
		}
	}

	c.JSON(200, gin.H{
		"ok":        true,
		"header":    h.Info(),
		"entries":   entries,
		"stats":     stats.Report(h),
		"truncated": truncated,
	})
}

func parseErrorCode(err error) string {
	var versionErr *snapshot.VersionError
	if errors.As(err, &versionErr) {
		return "VERSION_ERROR"
	}
	var formatErr *snapshot.FormatError
	if errors.As(err, &formatErr) {
		return "FORMAT_ERROR"
	}
	return "PARSE_ERROR"
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
    <title>UTXOTools - Snapshot Inspector</title>
    <style>
        body { font-family: Arial, sans-serif; max-width: 800px; margin: 50px auto; padding: 20px; }
        h1 { color: #f7931a; }
        button { background: #f7931a; color: white; padding: 10px 20px; border: none; cursor: pointer; }
        pre { background: #f5f5f5; padding: 15px; overflow-x: auto; }
    </style>
</head>
<body>
    <h1>&#9939; UTXOTools</h1>
    <p>Pick a UTXO set snapshot (or a prefix of one) to inspect:</p>
    <input type="file" id="input">
    <br><br>
    <button onclick="inspect()">Inspect Snapshot</button>
    <h2>Result:</h2>
    <pre id="output">Results will appear here...</pre>

    <script>
        async function inspect() {
            const files = document.getElementById('input').files;
            const output = document.getElementById('output');
            if (!files.length) { output.textContent = 'Choose a file first.'; return; }

            try {
                const response = await fetch('/api/inspect?limit=25', {
                    method: 'POST',
                    headers: {'Content-Type': 'application/octet-stream'},
                    body: files[0]
                });
                const result = await response.json();
                output.textContent = JSON.stringify(result, null, 2);
            } catch (err) {
                output.textContent = 'Error: ' + err.message;
            }
        }
    </script>
</body>
</html>`
