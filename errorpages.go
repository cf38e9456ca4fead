package lagonlike

// Static pages served when an invocation cannot produce a response of
// its own: no handler registered, handler failure, limits reached.

const page404 = `<!doctype html>
<html>
<head><title>404 - Function not found</title></head>
<body>
<h1>404</h1>
<p>This function does not exist.</p>
</body>
</html>
`

const page500 = `<!doctype html>
<html>
<head><title>500 - Function error</title></head>
<body>
<h1>500</h1>
<p>This function encountered an error while running.</p>
</body>
</html>
`

const page502 = `<!doctype html>
<html>
<head><title>502 - Function limits reached</title></head>
<body>
<h1>502</h1>
<p>This function reached its execution limits.</p>
</body>
</html>
`
