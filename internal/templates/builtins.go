package templates

// builtinTemplates holds every default definition. Each name can be
// shadowed individually from the overrides file.
const builtinTemplates = `
{{ define "head" }}<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{ if .Title }}{{ .Title }} | {{ end }}{{ .Site.Title }}</title>
{{ with .Site.Description }}<meta name="description" content="{{ . }}">
{{ end }}<link rel="stylesheet" href="style.css">{{ end }}

{{ define "site-header" }}<header class="site-header">
<h1><a href="{{ .Site.HomeURL }}">{{ .Site.Title }}</a></h1>
{{ with .Site.Description }}<p class="site-description">{{ . }}</p>{{ end }}
</header>{{ end }}

{{ define "menu-item" }}<li{{ if .Active }} class="active"{{ end }}>{{ if .URL }}<a href="{{ .URL }}">{{ .Label }}</a>{{ else }}<span class="menu-heading">{{ .Label }}</span>{{ end }}{{ with .Children }}
<ul>{{ range . }}{{ template "menu-item" . }}{{ end }}</ul>
{{ end }}</li>{{ end }}

{{ define "top-nav" }}<nav class="top-nav">{{ range .Menus }}
<ul>{{ range . }}{{ template "menu-item" . }}{{ end }}</ul>{{ end }}
</nav>{{ end }}

{{ define "footer" }}<footer class="site-footer">
<p>Served fresh from plain files.</p>
</footer>{{ end }}

{{ define "page" }}<!DOCTYPE html>
<html lang="en">
<head>
{{ template "head" . }}
</head>
<body>
{{ template "site-header" . }}
{{ template "top-nav" . }}
<main>
<article class="page">
{{ .Content }}</article>
</main>
{{ template "footer" . }}
</body>
</html>
{{ end }}

{{ define "post" }}<!DOCTYPE html>
<html lang="en">
<head>
{{ template "head" . }}
</head>
<body>
{{ template "site-header" . }}
{{ template "top-nav" . }}
<main>
<article class="post">
<div class="post-meta"><time datetime="{{ .CreatedAt.Format "2006-01-02" }}">{{ .CreatedAt.Format .Site.DateFormat }}</time>{{ if .HasTime }} <span class="post-time">{{ .CreatedAt.Format "15:04" }}</span>{{ end }}</div>
{{ .Content }}{{ with .Tags }}<p class="tags">{{ range . }}<a class="tag" href="{{ .URL }}">{{ .Label }}</a>
{{ end }}</p>{{ end }}</article>
</main>
{{ template "footer" . }}
</body>
</html>
{{ end }}

{{ define "list" }}<!DOCTYPE html>
<html lang="en">
<head>
{{ template "head" . }}
</head>
<body>
{{ template "site-header" . }}
{{ template "top-nav" . }}
<main>
{{ range .Posts }}<article class="preview">
<h2><a href="{{ .URL }}">{{ .Title }}</a></h2>
<div class="post-meta"><time datetime="{{ .Date.Format "2006-01-02" }}">{{ .Date.Format $.Site.DateFormat }}</time></div>
{{ .Preview }}{{ if .Truncated }}<p class="read-more"><a href="{{ .URL }}">Read more</a></p>
{{ end }}{{ with .Tags }}<p class="tags">{{ range . }}<a class="tag" href="{{ .URL }}">{{ .Label }}</a>
{{ end }}</p>{{ end }}</article>
{{ else }}<p class="no-posts">Nothing here yet.</p>
{{ end }}{{ with .Links }}<nav class="pagination">{{ range . }}{{ if .Ellipsis }}<span class="gap">&hellip;</span>{{ else if .Current }}<span class="current">{{ .Number }}</span>{{ else }}<a href="{{ .URL }}">{{ .Number }}</a>{{ end }}
{{ end }}</nav>
{{ end }}</main>
{{ template "footer" . }}
</body>
</html>
{{ end }}
`
